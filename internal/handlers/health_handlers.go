package handlers

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// HealthHandlers handles health check and readiness endpoints.
type HealthHandlers struct {
	checks  map[string]Check
	version string
	started time.Time
	timeout time.Duration
}

func NewHealthHandlers(version string, checks map[string]Check) *HealthHandlers {
	return &HealthHandlers{
		checks:  checks,
		version: version,
		started: time.Now(),
		timeout: 2 * time.Second,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Services   map[string]string `json:"services"`
	Uptime     string            `json:"uptime"`
	Version    string            `json:"version"`
	Goroutines int               `json:"goroutines"`
}

// HealthCheck reports each dependency. A failing dependency degrades the
// status but the process is still alive.
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	failed := h.run(c.Request().Context())

	health := &HealthStatus{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Services:   make(map[string]string, len(h.checks)),
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Version:    h.version,
		Goroutines: runtime.NumGoroutine(),
	}
	for name := range h.checks {
		if _, bad := failed[name]; bad {
			health.Services[name] = "unhealthy"
			health.Status = "degraded"
		} else {
			health.Services[name] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusPartialContent
	}
	return c.JSON(statusCode, health)
}

// ReadinessCheck determines if the application is ready to serve traffic
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	failed := h.run(c.Request().Context())
	if len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for name := range failed {
			names = append(names, name)
		}
		sort.Strings(names)
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":      "not_ready",
			"message":     "Critical services unavailable",
			"unavailable": names,
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ready",
		"message": "All systems operational",
	})
}

func (h *HealthHandlers) run(ctx context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	failed := map[string]error{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err
		}
	}
	return failed
}
