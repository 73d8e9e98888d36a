package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"resthub/internal/common"
)

// AuditMiddleware writes one structured audit record for every write request
// and every request that failed authentication or authorization.
type AuditMiddleware struct {
	logger *slog.Logger
}

func NewAuditMiddleware(logger *slog.Logger) *AuditMiddleware {
	return &AuditMiddleware{logger: logger.With("component", "audit")}
}

func (m *AuditMiddleware) AuditRequest() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = common.AsAppError(err).Status
			}
			if !shouldAudit(c.Request().Method, c.Path(), status) {
				return err
			}

			attrs := []any{
				"method", c.Request().Method,
				"path", c.Path(),
				"status", status,
				"ip", c.RealIP(),
				"user_agent", c.Request().UserAgent(),
			}
			if userID, ok := common.GetUserIDFromContext(c.Request().Context()); ok {
				attrs = append(attrs, "user_id", userID)
			}
			if err != nil {
				attrs = append(attrs, "error", err.Error())
			}
			m.logger.Info("audit", attrs...)
			return err
		}
	}
}

func shouldAudit(method, path string, status int) bool {
	if strings.HasPrefix(path, "/health") {
		return false
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return true
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
