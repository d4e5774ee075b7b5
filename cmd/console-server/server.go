package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/aioc/hospital-console/internal/config"
	"github.com/aioc/hospital-console/internal/domain/account"
	"github.com/aioc/hospital-console/internal/domain/calendar"
	"github.com/aioc/hospital-console/internal/domain/patients"
	"github.com/aioc/hospital-console/internal/domain/reports"
	"github.com/aioc/hospital-console/internal/domain/scheduling"
	"github.com/aioc/hospital-console/internal/domain/users"
	"github.com/aioc/hospital-console/internal/platform/db"
	"github.com/aioc/hospital-console/internal/platform/metrics"
	"github.com/aioc/hospital-console/internal/platform/middleware"
	"github.com/aioc/hospital-console/internal/platform/session"
	"github.com/aioc/hospital-console/internal/platform/upstream"
)

const (
	apiPrefix     = "/console/api"
	sweepInterval = time.Minute
)

// upstreams holds one client per backing service.
type upstreams struct {
	login      *upstream.Client
	management *upstream.Client
	scheduling *upstream.Client
	reports    *upstream.Client
}

func newUpstreams(cfg *config.Config, logger zerolog.Logger) upstreams {
	opts := []upstream.Option{
		upstream.WithTimeout(cfg.UpstreamTimeout),
		upstream.WithLogger(logger),
		upstream.WithObserver(metrics.Upstream{}),
	}
	return upstreams{
		login:      upstream.New("login", cfg.LoginAPIURL, opts...),
		management: upstream.New("management", cfg.ManagementAPIURL, opts...),
		scheduling: upstream.New("scheduling", cfg.SchedulingAPIURL, opts...),
		reports:    upstream.New("reports", cfg.ReportsAPIURL, opts...),
	}
}

func (u upstreams) checks() map[string]db.Check {
	return map[string]db.Check{
		"login":      u.login.Ping,
		"management": u.management.Ping,
		"scheduling": u.scheduling.Ping,
		"reports":    u.reports.Ping,
	}
}

// newSessionStore returns the configured store. The pool is nil for the
// memory store.
func newSessionStore(ctx context.Context, cfg *config.Config, secret []byte) (session.Store, *pgxpool.Pool, error) {
	if cfg.SessionStore != config.SessionStorePostgres {
		return session.NewMemoryStore(), nil, nil
	}
	sealKey, err := session.DeriveKey(secret, "seal")
	if err != nil {
		return nil, nil, err
	}
	sealer, err := session.NewSealer(sealKey)
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return session.NewPGStoreFromPool(pool, sealer), pool, nil
}

// server is the assembled application, split from runServer so tests can
// drive the echo instance directly.
type server struct {
	echo     *echo.Echo
	sessions *session.Manager
	views    *calendar.Views
	pool     *pgxpool.Pool
}

func newServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	secret, random, err := resolveSessionSecret(cfg.SessionSecret)
	if err != nil {
		return nil, err
	}
	if random {
		logger.Warn().Msg("SESSION_SECRET not set; using a random secret, sessions will not survive a restart")
	}
	cookieKey, err := session.DeriveKey(secret, "cookie")
	if err != nil {
		return nil, err
	}
	store, pool, err := newSessionStore(ctx, cfg, secret)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		logger.Info().Msg("connected to session database")
	}
	sessions := session.NewManager(store, session.NewCookieCodec(cookieKey), session.CookieConfig{
		Name:   cfg.CookieName,
		Secure: cfg.CookieSecure,
		Domain: cfg.CookieDomain,
	}, cfg.SessionTTL, logger)

	tokens := session.NewTokenInspector([]byte(cfg.AuthSecretKey))
	if !tokens.Verifies() {
		logger.Warn().Msg("AUTH_SECRET_KEY not set; access token signatures are not verified")
	}

	up := newUpstreams(cfg, logger)
	views := calendar.NewViews()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled || cfg.CookieSecure))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Content-Type", middleware.RequestIDHeader, scheduling.TimezoneHeader},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit("1M"))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/pdf"))
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/ready", db.HealthHandler(pool, up.checks()))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// API group
	api := e.Group(apiPrefix)
	api.Use(middleware.RateLimit(rateLimitCfg))
	api.Use(sessions.Middleware())
	api.Use(middleware.Audit(logger, apiPrefix, middleware.AuditedResources))

	// Account
	accountHandler := account.NewHandler(account.NewClient(up.login), tokens, sessions, views, logger)
	accountHandler.RegisterRoutes(api, middleware.RateLimit(middleware.LoginRateLimitConfig(cfg.LoginRatePerMinute)))

	// Patients
	patientClient := patients.NewClient(up.management)
	patients.NewHandler(patients.NewService(patientClient, logger)).RegisterRoutes(api)

	// Scheduling and calendar
	schedClient := scheduling.NewClient(up.scheduling)
	schedSvc := scheduling.NewService(schedClient.Appointments(), schedClient.Doctors(), patientClient, logger)
	scheduling.NewHandler(schedSvc, loc).RegisterRoutes(api)

	loader := calendar.NewLoader(schedClient.Appointments(), views, logger)
	calendar.NewHandler(loader, loc).RegisterRoutes(api)

	// Reports
	reports.NewHandler(reports.NewService(reports.NewClient(up.reports), logger)).RegisterRoutes(api)

	// Users
	users.NewHandler(users.NewService(users.NewClient(up.management), logger)).RegisterRoutes(api)

	return &server{echo: e, sessions: sessions, views: views, pool: pool}, nil
}

// background runs the session and calendar view sweepers until ctx ends.
func (s *server) background(ctx context.Context, idle time.Duration) {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	go s.views.Run(ctx, sweepInterval, idle)
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sessions.Sweep(ctx)
			}
		}
	}()
}

func (s *server) close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// loadConfig reads and validates the configuration. The logger is usable
// even when err is set.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, newLogger(nil), fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, logger, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, logger, nil
}

func runServer() error {
	// Config
	cfg, logger, err := loadConfig()
	if err != nil {
		logger.Error().Err(err).Msg("startup aborted")
		return err
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	srv, err := newServer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	defer srv.close()
	srv.background(ctx, cfg.CalendarViewIdle)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Str("env", cfg.Env).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = srv.echo.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.echo.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
