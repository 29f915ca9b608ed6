// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mynaner/zero2prod/api/openapi"
	"github.com/mynaner/zero2prod/internal/config"
	"github.com/mynaner/zero2prod/internal/identity"
	identitypostgres "github.com/mynaner/zero2prod/internal/identity/postgres"
	"github.com/mynaner/zero2prod/internal/newsletters"
	"github.com/mynaner/zero2prod/internal/notifications"
	"github.com/mynaner/zero2prod/internal/pkg/ctxlog"
	"github.com/mynaner/zero2prod/internal/pkg/httputil"
	"github.com/mynaner/zero2prod/internal/pkg/metrics"
	"github.com/mynaner/zero2prod/internal/pkg/postgres"
	"github.com/mynaner/zero2prod/internal/pkg/workerpool"
	"github.com/mynaner/zero2prod/internal/subscriptions"
	subscriptionspostgres "github.com/mynaner/zero2prod/internal/subscriptions/postgres"
	"github.com/mynaner/zero2prod/internal/version"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	hashPool      *workerpool.Pool
	sender        notifications.Sender
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
}

// Option customizes App construction.
type Option func(*options)

type options struct {
	sender notifications.Sender
}

// WithSender replaces the configured email transport. The sender is still
// wrapped with rate limiting and metrics.
func WithSender(s notifications.Sender) Option {
	return func(o *options) {
		o.sender = s
	}
}

// New creates a new application instance.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := initLogger(cfg.Log)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sender := o.sender
	if sender == nil {
		sender, err = newSender(connectCtx, cfg.EmailClient, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create email sender: %w", err)
		}
	}
	sender = notifications.Instrument(
		notifications.Throttle(sender, cfg.EmailClient.RateLimit, cfg.EmailClient.RateBurst),
	)

	hashPool := workerpool.New(workerpool.Config{
		Workers:   cfg.Auth.HashWorkers,
		QueueSize: cfg.Auth.HashQueue,
	}, logger.With("component", "password_hasher"))
	hashPool.Start()

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		hashPool:      hashPool,
		sender:        sender,
		metricsCancel: metricsCancel,
	}

	go app.collectMetrics(metricsCtx)

	router, err := app.setupRouter()
	if err != nil {
		hashPool.Stop()
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"email_transport", a.sender.Transport(),
		"version", version.Version,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	// In-flight requests are done; nothing submits to the pool any more.
	a.hashPool.Stop()
	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)
	metrics.RecordHashQueueDepth(a.hashPool)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
			metrics.RecordHashQueueDepth(a.hashPool)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// DB returns the connection pool. Used by tests to seed and inspect state.
func (a *App) DB() *pgxpool.Pool {
	return a.db
}

// Identity returns a service bound to the application's stores, for
// provisioning publishers.
func (a *App) Identity() *identity.Service {
	return identity.NewService(identitypostgres.NewRepository(a.db), a.hashPool, a.logger)
}

func (a *App) setupRouter() (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if a.config.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(a.config.Server.RequestTimeout))
	}

	r.Get("/health_check", a.healthCheckHandler)
	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(openapi.Spec)
	})

	renderer, err := notifications.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	subscriptionsRepo := subscriptionspostgres.NewRepository(a.db)
	subscriptionsService := subscriptions.NewService(
		subscriptionsRepo,
		a.sender,
		renderer,
		a.config.Application.BaseURL,
		a.logger.With("component", "subscriptions"),
	)
	subscriptions.NewHandler(subscriptionsService).RegisterRoutes(r)

	newslettersService := newsletters.NewService(
		a.Identity(),
		subscriptionsRepo,
		a.sender,
		a.logger.With("component", "newsletters"),
	)
	newsletters.NewHandler(newslettersService).RegisterRoutes(r)

	return r, nil
}

func (a *App) healthCheckHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Empty(w, http.StatusOK)
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
