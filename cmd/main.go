package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"resthub/internal/caching"
	"resthub/internal/common"
	"resthub/internal/config"
	"resthub/internal/handlers"
	"resthub/internal/jobs"
	"resthub/internal/logging"
	"resthub/internal/middleware"
	"resthub/internal/models"
	"resthub/internal/repositories"
	"resthub/internal/services"
	"resthub/internal/sockets"
	"resthub/internal/validation"
	"resthub/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.Environment)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	rdb := caching.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	defer rdb.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	clientRepo := repositories.NewClientRepo(pool)
	tokenRepo := repositories.NewTokenRepo(pool)
	codeRepo := repositories.NewAuthorizationCodeRepo(pool)
	userDocs := repositories.NewDocumentRepository(pool, models.User{}.TableName())
	notificationDocs := repositories.NewDocumentRepository(pool, models.Notification{}.TableName())

	// Services
	credentials := services.NewCredentialService()
	oauth2 := services.NewOAuth2Service(clientRepo, userRepo, tokenRepo, codeRepo, credentials, services.OAuth2Config{
		AccessTokenSecret:    cfg.AccessTokenSecret,
		RefreshTokenSecret:   cfg.RefreshTokenSecret,
		AccessTokenLifetime:  cfg.AccessTokenLifetime,
		RefreshTokenLifetime: cfg.RefreshTokenLifetime,
	}, logger)

	userProvider := services.NewResourceProvider[models.User](userDocs, services.ProviderOptions{
		Validator:  validation.MustLoad(validation.UserSchema),
		BeforeSave: []services.BeforeSaveFunc{services.UserBeforeSave(credentials)},
	})
	notificationProvider := services.NewResourceProvider[models.Notification](notificationDocs, services.ProviderOptions{
		Validator: validation.MustLoad(validation.NotificationSchema),
		Related:   map[string]repositories.DocumentRepository{models.User{}.TableName(): userDocs},
	})

	bootstrap := services.NewBootstrapper(clientRepo, userRepo, credentials, logger)
	if err := bootstrap.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return err
	}
	if err := bootstrap.EnsureDefaultClients(ctx, cfg.Clients); err != nil {
		return err
	}

	scheduler, err := jobs.NewScheduler(oauth2, cfg.TokenCleanupInterval, logger)
	if err != nil {
		return err
	}
	scheduler.Start()

	socketServer := sockets.NewServer(oauth2, logger)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = common.ErrorHandler(logger)

	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", logging.RedactURI(v.URI, middleware.QueryToken), "status", v.Status, "latency", v.Latency, "remote_ip", v.RemoteIP}
			if v.Error != nil {
				logger.Warn("request", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())
	e.Use(echoMiddleware.ContextTimeoutWithConfig(echoMiddleware.ContextTimeoutConfig{
		Timeout: cfg.RequestTimeout,
		// Socket connections outlive a single request.
		Skipper: func(c echo.Context) bool { return c.Path() == cfg.SocketsPath },
	}))

	versionMiddleware := middleware.NewVersionMiddleware()
	e.Use(versionMiddleware.APIVersionResolver())
	e.Use(middleware.NewAuditMiddleware(logger).AuditRequest())

	health := handlers.NewHealthHandlers(version, map[string]handlers.Check{
		"database": pool.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	e.GET("/health", health.HealthCheck)
	e.GET("/health/ready", health.ReadinessCheck)

	limiter := caching.NewRedisRateLimiter(rdb, cfg.LoginRateLimit, cfg.LoginRateWindow)
	v1 := versionMiddleware.VersionRoute(e, "v1")
	handlers.RegisterRoutes(v1, handlers.API{
		OAuth2:        oauth2,
		Credentials:   credentials,
		UserRepo:      userRepo,
		Users:         userProvider,
		Notifications: notificationProvider,
		LoginLimit:    middleware.LoginRateLimit(limiter, logger),
	})

	e.GET(cfg.SocketsPath, echo.WrapHandler(socketServer))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "version", version, "address", cfg.Address(), "environment", cfg.Environment)
		if err := e.Start(cfg.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	socketServer.Shutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := scheduler.Stop(); err != nil {
		logger.Error("scheduler shutdown", "error", err)
	}
	return nil
}
