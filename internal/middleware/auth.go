package middleware

import (
	"errors"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"resthub/internal/common"
	"resthub/internal/models"
	"resthub/internal/services"
)

// bearerLookup reads the token from the Authorization header.
const bearerLookup = "header:Authorization:Bearer "

// Authenticator resolves bearer tokens through the OAuth2 service.
type Authenticator struct {
	oauth2 services.OAuth2Service
}

func NewAuthenticator(oauth2 services.OAuth2Service) *Authenticator {
	return &Authenticator{oauth2: oauth2}
}

// RequireAuth rejects requests without a live access token. On success the
// token is available through GetToken and common.GetTokenFromContext.
func (a *Authenticator) RequireAuth() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  common.EchoTokenKey,
		TokenLookup: bearerLookup,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			token, err := a.oauth2.Authenticate(c.Request().Context(), auth)
			if err != nil {
				return nil, err
			}
			c.SetRequest(c.Request().WithContext(common.WithToken(c.Request().Context(), token)))
			return token, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				return appErr
			}
			return common.NewUnauthorized("Unauthorized request: no authentication given")
		},
	})
}

// GetToken returns the token stored by RequireAuth, or nil.
func GetToken(c echo.Context) *models.Token {
	token, _ := c.Get(common.EchoTokenKey).(*models.Token)
	return token
}
