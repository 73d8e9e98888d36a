package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/labstack/echo/v4"

	"resthub/internal/common"
	"resthub/internal/validation"
)

// ValidateBody checks a JSON request body against schema. The decoded body is
// stored under common.EchoBodyKey and the raw body is restored for binding.
func ValidateBody(schema *validation.Schema) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			raw, err := io.ReadAll(req.Body)
			if err != nil {
				return common.NewInvalidRequest("Could not read request body")
			}
			req.Body = io.NopCloser(bytes.NewReader(raw))

			if len(bytes.TrimSpace(raw)) > 0 && !isJSON(req.Header.Get(echo.HeaderContentType)) {
				return common.NewInvalidRequest("Request body must be application/json")
			}

			body := map[string]any{}
			if len(bytes.TrimSpace(raw)) > 0 {
				if err := json.Unmarshal(raw, &body); err != nil {
					return common.NewInvalidRequest("Request body must be a JSON object")
				}
			}

			if errs := schema.Validate(body); len(errs) > 0 {
				return common.NewValidationError(errs)
			}
			c.Set(common.EchoBodyKey, body)
			return next(c)
		}
	}
}

// GetBody returns the body decoded by ValidateBody, or nil.
func GetBody(c echo.Context) map[string]any {
	body, _ := c.Get(common.EchoBodyKey).(map[string]any)
	return body
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), echo.MIMEApplicationJSON)
}
