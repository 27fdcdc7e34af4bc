package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"compass-auth/internal/config"
	"compass-auth/internal/database"
	"compass-auth/internal/event"
	"compass-auth/internal/handler"
	"compass-auth/internal/identity"
	"compass-auth/internal/mail"
	"compass-auth/internal/metrics"
	"compass-auth/internal/middleware"
	"compass-auth/internal/redirect"
	"compass-auth/internal/repository"
	"compass-auth/internal/router"
	"compass-auth/internal/service"
	"compass-auth/internal/session"
	"compass-auth/internal/verification"
)

type App struct {
	cfg          *config.Config
	logger       *slog.Logger
	server       *http.Server
	audit        *service.AuditService
	cleanupFuncs []func()
}

// New wires every component from cfg. Without DATABASE_URL accounts and the
// audit trail live in memory; without REDIS_URL so do verification codes.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	accounts, auditRecorder, dbCheck, err := a.openRepositories(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	codes, redisCheck, err := a.openCodeStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.RefreshSecretFallback() {
		logger.Warn("JWT_REFRESH_SECRET not set, refresh tokens are signed with JWT_SECRET")
	}
	sessions := session.NewManager(accounts, session.Config{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
	})

	resolver := redirect.NewResolver(redirect.Options{
		Development:        cfg.IsDevelopment(),
		ExpoProxyURI:       cfg.ExpoProxyRedirectURI,
		MobileURIs:         cfg.MobileRedirectURIs,
		WebHosts:           cfg.RedirectWebHosts,
		DefaultLoginURI:    cfg.GoogleRedirectURI,
		DefaultRegisterURI: cfg.GoogleRedirectURIRegister,
	})
	exchanger := identity.NewGoogleExchanger(identity.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
	})

	m := metrics.New()
	bus := event.NewBus()
	bus.OnDrop(func(e event.Event) {
		m.ObserveDrop()
		logger.Warn("audit event dropped", "type", e.Type)
	})

	a.audit = service.NewAuditService(bus, auditRecorder, m, logger)
	auditCtx, stopAudit := context.WithCancel(context.WithoutCancel(ctx))
	a.audit.Start(auditCtx)
	a.cleanupFuncs = append(a.cleanupFuncs, func() {
		stopAudit()
		a.audit.Wait()
	})

	authService := service.NewAuthService(service.AuthDeps{
		Accounts:   accounts,
		Sessions:   sessions,
		Codes:      codes,
		Identity:   identity.NewBridge(resolver, exchanger, accounts, logger),
		Mailer:     a.mailer(),
		Bus:        bus,
		Logger:     logger,
		BcryptCost: cfg.BcryptCost,
	})

	checks := map[string]handler.HealthCheck{}
	if dbCheck != nil {
		checks["database"] = dbCheck
	}
	if redisCheck != nil {
		checks["redis"] = redisCheck
	}

	cookies := session.NewCookies(!cfg.IsDevelopment(), sessions.AccessTTL(), sessions.RefreshTTL())
	appRouter := router.New(router.Options{
		CORSOrigins:       cfg.CORSOrigins,
		RateLimitRPM:      cfg.RateLimitRPM,
		RequestTimeout:    cfg.RequestTimeout,
		TrustProxyHeaders: cfg.TrustProxy,
	}, middleware.NewAuthMiddleware(sessions), m, router.Handlers{
		Auth:        handler.NewAuthHandler(authService, cookies),
		Affiliation: handler.NewAffiliationHandler(authService),
		Audit:       handler.NewAuditHandler(a.audit),
		Health:      handler.NewHealthHandler(checks),
		Metrics:     m.Handler(),
	})

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		ReadTimeout:       cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return a, nil
}

func (a *App) openRepositories(ctx context.Context) (service.AccountRepository, service.AuditRecorder, handler.HealthCheck, error) {
	if a.cfg.DatabaseURL == "" {
		a.logger.Warn("DATABASE_URL not set, accounts are kept in memory")
		return repository.NewMemoryAccountRepository(), repository.NewMemoryAuditRepository(a.cfg.AuditBuffer), nil, nil
	}

	db, err := database.Open(ctx, database.Options{
		URL:      a.cfg.DatabaseURL,
		MaxConns: a.cfg.DBMaxConns,
		MinConns: a.cfg.DBMinConns,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.cleanupFuncs = append(a.cleanupFuncs, db.Close)

	if err := db.Migrate(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repository.NewAccountRepository(db.Pool), repository.NewAuditRepository(db.Pool), db.Health, nil
}

func (a *App) openCodeStore(ctx context.Context) (verification.Store, handler.HealthCheck, error) {
	if a.cfg.RedisURL == "" {
		return verification.NewMemoryStore(), nil, nil
	}

	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	a.cleanupFuncs = append(a.cleanupFuncs, func() { _ = client.Close() })

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	a.logger.Info("verification codes stored in redis", "addr", opts.Addr)
	return verification.NewRedisStore(client), func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, nil
}

func (a *App) mailer() mail.Mailer {
	if a.cfg.IsDevelopment() || a.cfg.ResendAPIKey == "" {
		if !a.cfg.IsDevelopment() {
			a.logger.Warn("RESEND_API_KEY not set, verification codes are only logged")
		}
		return mail.NewLogMailer(a.logger)
	}
	return mail.NewResendMailer(a.cfg.ResendAPIKey, a.cfg.MailFrom)
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", a.server.Addr, "environment", a.cfg.Environment)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		a.Close()
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	a.Close()
	if err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	a.logger.Info("server stopped")
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}

// Migrate applies the schema without starting the server.
func Migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required to run migrations")
	}

	db, err := database.Open(ctx, database.Options{URL: cfg.DatabaseURL, MaxConns: 2})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	return db.Migrate(ctx)
}
