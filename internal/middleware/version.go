package middleware

import (
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"resthub/internal/common"
)

// APIVersion represents API version information
type APIVersion struct {
	Version    string     `json:"version"`
	Status     string     `json:"status"` // "active", "deprecated"
	SunsetDate *time.Time `json:"sunset_date,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// VersionMiddleware provides API versioning functionality
type VersionMiddleware struct {
	supportedVersions map[string]APIVersion
	defaultVersion    string
}

func NewVersionMiddleware() *VersionMiddleware {
	return &VersionMiddleware{
		supportedVersions: map[string]APIVersion{
			"v1": {
				Version: "v1",
				Status:  "active",
				Message: "Current stable API version",
			},
		},
		defaultVersion: "v1",
	}
}

// VersionHeader adds version information to response headers
func (vm *VersionMiddleware) VersionHeader(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-API-Version", version)

			if ver, exists := vm.supportedVersions[version]; exists {
				if ver.Status == "deprecated" && ver.SunsetDate != nil {
					h.Set("X-API-Deprecated", "true")
					h.Set("X-API-Sunset", ver.SunsetDate.Format(time.RFC3339))
				}
				h.Set("X-API-Message", ver.Message)
			}
			return next(c)
		}
	}
}

// VersionRoute creates a version-specific route group
func (vm *VersionMiddleware) VersionRoute(e *echo.Echo, version string) *echo.Group {
	group := e.Group("/" + version)
	group.Use(vm.VersionHeader(version))
	return group
}

// APIVersionResolver rejects paths naming a version that is not served.
func (vm *VersionMiddleware) APIVersionResolver() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			version := extractVersionFromPath(c.Request().URL.Path)
			if version == "" {
				c.Set("api_version", vm.defaultVersion)
				return next(c)
			}
			if _, supported := vm.supportedVersions[version]; !supported {
				return common.NewNotFound("API version " + version + " (supported: " + strings.Join(vm.versions(), ", ") + ")")
			}
			c.Set("api_version", version)
			return next(c)
		}
	}
}

// extractVersionFromPath returns "vN" for paths like /vN or /vN/...
func extractVersionFromPath(path string) string {
	segment := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(segment, '/'); i >= 0 {
		segment = segment[:i]
	}
	if len(segment) < 2 || segment[0] != 'v' {
		return ""
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return ""
		}
	}
	if segment[1] == '0' {
		return ""
	}
	return segment
}

func (vm *VersionMiddleware) versions() []string {
	var out []string
	for version := range vm.supportedVersions {
		out = append(out, version)
	}
	sort.Strings(out)
	return out
}
