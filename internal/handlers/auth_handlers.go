package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"resthub/internal/common"
	"resthub/internal/middleware"
	"resthub/internal/models"
	"resthub/internal/services"
)

// AuthHandlers handles the token endpoint and logout.
type AuthHandlers struct {
	oauth2 services.OAuth2Service
	now    func() time.Time
}

func NewAuthHandlers(oauth2 services.OAuth2Service) *AuthHandlers {
	return &AuthHandlers{oauth2: oauth2, now: time.Now}
}

// LogoutResponse is the body of a successful logout.
type LogoutResponse struct {
	Status string `json:"status"`
}

// Login runs a token grant. The body may be form encoded or JSON.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req services.TokenRequest
	if err := c.Bind(&req); err != nil {
		return common.NewInvalidRequest("Invalid request: malformed body")
	}

	token, err := h.oauth2.Token(c.Request().Context(), req)
	if err != nil {
		return err
	}

	c.Response().Header().Set("Cache-Control", "no-store")
	c.Response().Header().Set("Pragma", "no-cache")
	return c.JSON(http.StatusOK, h.tokenResponse(token))
}

func (h *AuthHandlers) tokenResponse(token *models.Token) models.TokenResponse {
	expiresIn := int(token.AccessTokenExpiresAt.Sub(h.now()).Round(time.Second) / time.Second)
	return models.TokenResponse{
		AccessToken:  token.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    max(expiresIn, 0),
		RefreshToken: token.RefreshToken,
		Scope:        strings.Join(token.Scope, " "),
	}
}

// Logout revokes the current token, or the user's other tokens when
// ?clients=all or ?clients=allButCurrent is given. Revoking an already
// revoked token still succeeds.
func (h *AuthHandlers) Logout(c echo.Context) error {
	token := middleware.GetToken(c)
	if token == nil {
		return common.NewUnauthorized("Unauthorized request: no authentication given")
	}

	if _, err := h.oauth2.RevokeMultipleTokens(c.Request().Context(), token, c.QueryParam(middleware.QueryClients)); err != nil {
		if appErr := common.AsAppError(err); appErr.Status < http.StatusInternalServerError {
			return appErr
		}
		failed := common.NewInvalidRequest("Logout failed")
		failed.Err = err
		return failed
	}
	return c.JSON(http.StatusOK, LogoutResponse{Status: "logged_out"})
}
