package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"resthub/internal/common"
	"resthub/internal/middleware"
	"resthub/internal/models"
	"resthub/internal/repositories"
	"resthub/internal/services"
)

// UserHandlers serves the authenticated user's own profile.
type UserHandlers struct {
	users       *ResourceController[models.User]
	repo        repositories.UserRepository
	credentials services.CredentialService
}

func NewUserHandlers(users *ResourceController[models.User], repo repositories.UserRepository, credentials services.CredentialService) *UserHandlers {
	return &UserHandlers{users: users, repo: repo, credentials: credentials}
}

func (h *UserHandlers) Me(c echo.Context) error {
	token := middleware.GetToken(c)
	if token == nil {
		return common.NewUnauthorized("Unauthorized request: no authentication given")
	}
	return h.users.ShowID(c, token.UserID)
}

// UpdateMe updates the profile. Readonly fields are ignored as on any update.
func (h *UserHandlers) UpdateMe(c echo.Context) error {
	token := middleware.GetToken(c)
	if token == nil {
		return common.NewUnauthorized("Unauthorized request: no authentication given")
	}
	return h.users.UpdateID(c, token.UserID)
}

// ChangePassword expects a body already checked by the password change schema.
func (h *UserHandlers) ChangePassword(c echo.Context) error {
	token := middleware.GetToken(c)
	if token == nil {
		return common.NewUnauthorized("Unauthorized request: no authentication given")
	}
	ctx := c.Request().Context()
	body := middleware.GetBody(c)
	oldPassword, _ := body["oldPassword"].(string)
	newPassword, _ := body["newPassword"].(string)

	user, err := h.repo.GetByID(ctx, token.UserID)
	if errors.Is(err, repositories.ErrNotFound) {
		return common.NewNotFound("users")
	}
	if err != nil {
		return err
	}

	if !h.credentials.Authenticate(user, oldPassword) {
		return common.NewInvalidRequest("Old password is not correct")
	}
	if err := h.credentials.SetPassword(user, newPassword); err != nil {
		if errors.Is(err, services.ErrEmptyPassword) {
			return common.NewValidationError([]common.FieldError{{Field: "newPassword", Code: "required", Message: err.Error()}})
		}
		return err
	}
	if err := h.repo.UpdatePassword(ctx, user.ID, user.PasswordHash, user.Salt); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return common.NewNotFound("users")
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
