package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"resthub/internal/caching"
	"resthub/internal/common"
)

// LoginRateLimit limits token requests per client IP and username. When the
// limiter itself fails the request is let through and the failure is logged.
// A request answered with 200 resets the counter for its key.
func LoginRateLimit(limiter caching.RateLimiter, logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP() + "|" + common.NormalizeEmail(loginUsername(c))

			ctx := c.Request().Context()
			allowed, err := limiter.Allow(ctx, key)
			if err != nil {
				logger.Warn("login rate limiter unavailable", "error", err)
				return next(c)
			}
			if !allowed {
				return common.NewTooManyRequests()
			}

			if err := next(c); err != nil {
				return err
			}
			// A successful login clears earlier failures for the same key.
			if c.Response().Status == http.StatusOK {
				if err := limiter.Reset(ctx, key); err != nil {
					logger.Warn("resetting login rate limit", "error", err)
				}
			}
			return nil
		}
	}
}

// loginUsername peeks at the username of a form or JSON token request
// without consuming the body.
func loginUsername(c echo.Context) string {
	req := c.Request()
	if !isJSON(req.Header.Get(echo.HeaderContentType)) {
		return c.FormValue("username")
	}

	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return ""
	}
	req.Body = io.NopCloser(bytes.NewReader(raw))

	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.Username)
}
