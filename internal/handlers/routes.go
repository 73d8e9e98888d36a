package handlers

import (
	"github.com/labstack/echo/v4"

	"resthub/internal/middleware"
	"resthub/internal/models"
	"resthub/internal/repositories"
	"resthub/internal/services"
	"resthub/internal/validation"
)

// API bundles what the /v1 routes need.
type API struct {
	OAuth2        services.OAuth2Service
	Credentials   services.CredentialService
	UserRepo      repositories.UserRepository
	Users         services.Provider[models.User]
	Notifications services.Provider[models.Notification]
	// LoginLimit guards POST /login when set.
	LoginLimit echo.MiddlewareFunc
}

// RegisterRoutes mounts the token endpoints and resources on v1.
func RegisterRoutes(v1 *echo.Group, api API) {
	auth := middleware.NewAuthenticator(api.OAuth2).RequireAuth()
	superadmin := middleware.NewRBACMiddleware(api.OAuth2).RequireRole(models.RoleSuperadmin)

	authHandlers := NewAuthHandlers(api.OAuth2)
	var loginMiddleware []echo.MiddlewareFunc
	if api.LoginLimit != nil {
		loginMiddleware = append(loginMiddleware, api.LoginLimit)
	}
	v1.POST("/login", authHandlers.Login, loginMiddleware...)
	v1.GET("/logout", authHandlers.Logout, auth)

	protected := v1.Group("", auth, middleware.QueryParser())

	users := NewResourceController[models.User](api.Users, ControllerOptions{Name: "users"})
	// Users may not change their own role.
	self := NewResourceController[models.User](api.Users, ControllerOptions{Name: "users", Blacklist: []string{"role"}})
	userHandlers := NewUserHandlers(self, api.UserRepo, api.Credentials)

	protected.GET("/users/me", userHandlers.Me)
	updateMe := middleware.ValidateBody(validation.MustLoad(validation.UserProfileSchema))
	protected.PUT("/users/me", userHandlers.UpdateMe, updateMe)
	protected.PATCH("/users/me", userHandlers.UpdateMe, updateMe)
	protected.PUT("/users/me/password", userHandlers.ChangePassword,
		middleware.ValidateBody(validation.MustLoad(validation.PasswordChangeSchema)))

	users.Register(protected, "/users", RouteOptions{
		Index:  &Route{Middleware: []echo.MiddlewareFunc{superadmin}},
		Create: &Route{Middleware: []echo.MiddlewareFunc{superadmin, middleware.ValidateBody(validation.MustLoad(validation.UserCreateSchema))}},
		Show:   &Route{},
		Update: &Route{Middleware: []echo.MiddlewareFunc{superadmin}},
		Delete: &Route{Middleware: []echo.MiddlewareFunc{superadmin}},
	})

	notifications := NewResourceController[models.Notification](api.Notifications, ControllerOptions{Name: "notifications"})
	notifications.Register(protected, "/notifications", RouteOptions{
		Index:  &Route{},
		Show:   &Route{},
		Create: &Route{Middleware: []echo.MiddlewareFunc{superadmin}},
		Update: &Route{Middleware: []echo.MiddlewareFunc{superadmin}},
		Delete: &Route{Middleware: []echo.MiddlewareFunc{superadmin}},
	})
}
