package middleware

import (
	"github.com/labstack/echo/v4"

	"resthub/internal/services"
)

type RBACMiddleware struct {
	oauth2 services.OAuth2Service
}

func NewRBACMiddleware(oauth2 services.OAuth2Service) *RBACMiddleware {
	return &RBACMiddleware{oauth2: oauth2}
}

// RequireRole must run after RequireAuth. A valid token whose user lacks
// role is forbidden.
func (m *RBACMiddleware) RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := m.oauth2.HasRole(GetToken(c), role); err != nil {
				return err
			}
			return next(c)
		}
	}
}
