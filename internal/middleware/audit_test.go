package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"resthub/internal/common"
)

func TestAuditRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	e := newTestEcho()
	audit := NewAuditMiddleware(logger).AuditRequest()
	e.GET("/things", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, audit)
	e.GET("/secret", func(c echo.Context) error { return common.NewForbidden("no") }, audit)
	e.POST("/things", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, audit)

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things", nil))
	assert.Empty(t, buf.String(), "plain reads are not audited")

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/things", nil))
	assert.Contains(t, buf.String(), `"status":201`)
	assert.Contains(t, buf.String(), `"component":"audit"`)

	buf.Reset()
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/secret", nil))
	assert.Contains(t, buf.String(), `"status":403`)
}

func TestShouldAudit(t *testing.T) {
	assert.False(t, shouldAudit(http.MethodPost, "/health", http.StatusOK))
	assert.True(t, shouldAudit(http.MethodDelete, "/v1/users/:id", http.StatusNoContent))
	assert.True(t, shouldAudit(http.MethodGet, "/v1/users", http.StatusUnauthorized))
	assert.False(t, shouldAudit(http.MethodGet, "/v1/users", http.StatusOK))
}
