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

	httpapi "github.com/clearmind-health/identity/internal/identity/http"
	"github.com/clearmind-health/identity/internal/identity/notify"
	"github.com/clearmind-health/identity/internal/identity/provider"
	"github.com/clearmind-health/identity/internal/identity/provider/local"
	"github.com/clearmind-health/identity/internal/identity/provider/resolve"
	"github.com/clearmind-health/identity/internal/identity/provider/userpool"
	"github.com/clearmind-health/identity/internal/identity/service"
	"github.com/clearmind-health/identity/internal/identity/store"
	"github.com/clearmind-health/identity/internal/identity/store/drivers/sqlite"
	"github.com/clearmind-health/identity/pkg/cryptox"
	"github.com/clearmind-health/identity/pkg/httpx"
	"github.com/clearmind-health/identity/pkg/jwtx"
	"github.com/clearmind-health/identity/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the identity service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	signer   *jwtx.Signer
	resolver *resolve.Resolver

	// Services
	tokenService        *service.TokenService
	userService         *service.UserService
	lockoutService      *service.LockoutService
	mfaService          *service.MFAService
	authService         *service.AuthService
	sessionService      *service.SessionService
	rbacService         *service.RBACService
	auditService        *service.AuditService
	complianceService   *service.ComplianceService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "identity-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.Secret == "" {
		return nil, errors.New("IDENTITY_SECRET must be set")
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	signer, err := jwtx.NewSigner([]byte(cfg.Secret), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token signer: %w", err)
	}
	app.signer = signer

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initProviders(); err != nil {
		return nil, err
	}
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("identity service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"primary_provider", app.resolver.PrimaryType(),
	)

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
	app.logger.Info("shutting down identity service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("identity service stopped")
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

// initProviders builds the configured identity providers and the resolver.
// The local provider is always available; the hosted pool joins when its
// endpoint is configured.
func (app *Application) initProviders() error {
	sender := notify.NewLogSender(app.logger)

	providers := []provider.IdentityProvider{
		local.New(app.db, app.signer, sender, app.cfg.AccessTokenTTL),
	}

	if app.cfg.PoolEndpoint != "" {
		providers = append(providers, userpool.New(userpool.Config{
			Endpoint: app.cfg.PoolEndpoint,
			PoolID:   app.cfg.PoolID,
			ClientID: app.cfg.PoolClientID,
		}))
	}

	primary := provider.Type(app.cfg.PrimaryProvider)
	if primary == provider.TypeUserPool && app.cfg.PoolEndpoint == "" {
		return errors.New("PRIMARY_PROVIDER=userpool requires USERPOOL_ENDPOINT")
	}

	// Reject an unknown PRIMARY_PROVIDER at startup rather than serving
	// requests that can never resolve a provider.
	registered := false
	for _, p := range providers {
		if p.Type() == primary {
			registered = true
			break
		}
	}
	if !registered {
		return fmt.Errorf("PRIMARY_PROVIDER %q is not a configured provider", app.cfg.PrimaryProvider)
	}

	app.resolver = resolve.New(primary, providers...)
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Signer:        app.signer,
		Store:         app.db,
		AccessTTL:     app.cfg.AccessTokenTTL,
		RefreshTTL:    app.cfg.RefreshTokenTTL,
		RememberMeTTL: app.cfg.RememberMeTTL,
	}

	app.userService = &service.UserService{Store: app.db}
	app.lockoutService = service.NewLockoutService(app.db)
	app.auditService = &service.AuditService{Store: app.db}
	app.rbacService = &service.RBACService{Store: app.db}

	app.mfaService = &service.MFAService{
		Store:  app.db,
		Sender: notify.NewLogSender(app.logger),
		Issuer: app.cfg.Issuer,
	}

	app.authService = &service.AuthService{
		Resolver:          app.resolver,
		Users:             app.userService,
		Tokens:            app.tokenService,
		Lockouts:          app.lockoutService,
		MFA:               app.mfaService,
		Audit:             app.auditService,
		Store:             app.db,
		PasswordMinLength: app.cfg.PasswordMinLength,
	}

	app.sessionService = &service.SessionService{
		Store: app.db,
		Audit: app.auditService,
	}

	app.complianceService = &service.ComplianceService{
		Store: app.db,
		Audit: app.auditService,
		Users: app.userService,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.AuditRetention,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.signer,
		BuildVersion,
		app.db,
		app.logger,
		httpx.CORSConfig{AllowedOrigins: app.cfg.CORSOrigins},
	)

	// Wire services to router
	router.AuthService = app.authService
	router.UserService = app.userService
	router.MFAService = app.mfaService
	router.SessionService = app.sessionService
	router.RBACService = app.rbacService
	router.AuditService = app.auditService
	router.ComplianceService = app.complianceService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
