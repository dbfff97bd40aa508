package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sethvargo/go-retry"

	httpapi "github.com/aussiebroadwan/yieldbook/internal/auth/http"
	"github.com/aussiebroadwan/yieldbook/internal/auth/policy"
	"github.com/aussiebroadwan/yieldbook/internal/auth/service"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/yieldbook/pkg/cryptox"
	"github.com/aussiebroadwan/yieldbook/pkg/httpx"
	"github.com/aussiebroadwan/yieldbook/pkg/jwtx"
	"github.com/aussiebroadwan/yieldbook/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	codec    *jwtx.Codec
	registry *prometheus.Registry

	sessions     *service.SessionService
	housekeeping *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// NewLogger builds the service logger for cfg and installs it as the slog
// default.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "auth-service",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// New validates cfg and builds every dependency. Configuration problems
// are reported as ErrConfiguration before anything is opened.
func New(ctx context.Context, cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg:    cfg,
		logger: NewLogger(cfg),
	}

	codec, err := jwtx.NewCodec([]byte(cfg.SecretKey), cfg.Algorithm, jwtx.WithTTLs(cfg.AccessTTL, cfg.RefreshTTL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	app.codec = codec

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler exposes the HTTP router.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until ctx is done, a shutdown
// signal arrives or the server fails.
func (app *Application) Run(ctx context.Context) error {
	app.housekeeping.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"driver", app.cfg.DatabaseDriver,
		"algorithm", app.codec.Alg(),
		"refresh_single_use", app.cfg.RefreshSingleUse,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeeping.Stop()
			_ = app.db.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
	case <-ctx.Done():
		app.logger.Info("shutdown requested", "reason", context.Cause(ctx))
	}

	if err := app.Shutdown(); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// OpenStore opens the configured driver and waits for it to answer a ping.
// Migrations are not applied.
func OpenStore(ctx context.Context, cfg Config, logger *slog.Logger) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.DatabaseDriver {
	case "postgres":
		st, err = postgres.NewStore(ctx, cfg.DSN())
	case "sqlite":
		st, err = sqlite.NewStore(cfg.DSN())
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", ErrConfiguration, cfg.DatabaseDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.DatabaseDriver, err)
	}

	// Containers often start before their database does.
	backoff := retry.WithMaxRetries(6, retry.NewExponential(250*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := st.Ping(ctx); err != nil {
			logger.Warn("database not ready", "driver", cfg.DatabaseDriver, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return st, nil
}

func (app *Application) initDatabase(ctx context.Context) error {
	db, err := OpenStore(ctx, app.cfg, app.logger)
	if err != nil {
		return err
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

func (app *Application) initServices() {
	app.sessions = &service.SessionService{
		Store:     app.db,
		Codec:     app.codec,
		Hasher:    cryptox.PasswordHasher{Cost: app.cfg.BcryptCost},
		Policy:    policy.New(app.cfg.MinPasswordLength),
		SingleUse: app.cfg.RefreshSingleUse,
	}

	app.housekeeping = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	service.RegisterMetrics(app.registry)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(httpapi.Options{
		Sessions: app.sessions,
		Store:    app.db,
		Cookie: httpx.CookieConfig{
			Name:   httpapi.RefreshCookieName,
			Path:   app.cfg.CookiePath,
			Secure: app.cfg.CookieSecure,
			MaxAge: app.cfg.RefreshTTL,
		},
		RateLimits:        app.cfg.RateLimits,
		TrustProxyHeaders: app.cfg.TrustProxyHeaders,
		AllowedOrigins:    app.cfg.AllowedOrigins,
		Gatherer:          app.registry,
		BuildVersion:      BuildVersion,
		Logger:            app.logger,
	})
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
