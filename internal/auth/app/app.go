// Package app assembles the auth service: config, store, services and the
// HTTP server, with graceful shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/loandocs/loandocs/internal/auth/http"
	"github.com/loandocs/loandocs/internal/auth/identity"
	"github.com/loandocs/loandocs/internal/auth/mailer"
	"github.com/loandocs/loandocs/internal/auth/service"
	"github.com/loandocs/loandocs/internal/auth/store"
	"github.com/loandocs/loandocs/internal/auth/store/drivers/sqlite"
	"github.com/loandocs/loandocs/pkg/jwtx"
	"github.com/loandocs/loandocs/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db    store.Store
	codec *jwtx.Codec

	tokenService        *service.TokenService
	sessionService      *service.SessionService
	magicLinkService    *service.MagicLinkService
	verificationService *service.VerificationService
	rateLimitService    *service.RateLimitService
	userService         *service.UserService
	auditService        *service.AuditService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "loandocs-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	codec, err := jwtx.NewCodec(cfg.JWTSecret, cfg.Issuer, cfg.Audience)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
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

	app.housekeepingService.Stop()

	// Drain queued audit events before the store goes away.
	app.auditService.Close()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.auditService = service.NewAuditService(app.db, app.logger, app.cfg.AuditBufferSize)

	app.rateLimitService = &service.RateLimitService{
		Store: app.db,
		Audit: app.auditService,
	}

	app.tokenService = &service.TokenService{
		Store:    app.db,
		Codec:    app.codec,
		Audit:    app.auditService,
		TokenTTL: app.cfg.SessionTokenTTL,
	}

	smtp := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:      app.cfg.SMTPHost,
		Port:      app.cfg.SMTPPort,
		Username:  app.cfg.SMTPUser,
		Password:  app.cfg.SMTPPass,
		FromEmail: app.cfg.FromEmail,
	}, app.logger)

	provider := identity.NewClient(app.cfg.IdentityBaseURL, app.cfg.IdentityAPIKey)

	app.verificationService = &service.VerificationService{
		Store:      app.db,
		Mailer:     smtp,
		RateLimits: app.rateLimitService,
		Audit:      app.auditService,
		Logger:     app.logger,
	}

	app.magicLinkService = &service.MagicLinkService{
		Store:      app.db,
		Identity:   provider,
		Mailer:     smtp,
		RateLimits: app.rateLimitService,
		Audit:      app.auditService,
		Logger:     app.logger,
	}

	app.sessionService = &service.SessionService{
		Store:             app.db,
		Identity:          provider,
		Tokens:            app.tokenService,
		Verification:      app.verificationService,
		Audit:             app.auditService,
		Logger:            app.logger,
		TwoFactorRequired: app.cfg.TwoFactorRequired,
	}

	app.userService = &service.UserService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	router.TokenService = app.tokenService
	router.SessionService = app.sessionService
	router.MagicLinkService = app.magicLinkService
	router.UserService = app.userService
	router.AuditService = app.auditService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
