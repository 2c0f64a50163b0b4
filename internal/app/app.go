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
	"github.com/tracelight/tracelight/internal/config"
	"github.com/tracelight/tracelight/internal/correlation"
	"github.com/tracelight/tracelight/internal/detector"
	detectorpostgres "github.com/tracelight/tracelight/internal/detector/postgres"
	"github.com/tracelight/tracelight/internal/diagnosis"
	"github.com/tracelight/tracelight/internal/incidents"
	incidentspostgres "github.com/tracelight/tracelight/internal/incidents/postgres"
	"github.com/tracelight/tracelight/internal/notifications"
	"github.com/tracelight/tracelight/internal/notifications/discord"
	notificationspostgres "github.com/tracelight/tracelight/internal/notifications/postgres"
	"github.com/tracelight/tracelight/internal/notifications/slack"
	"github.com/tracelight/tracelight/internal/pkg/ctxlog"
	"github.com/tracelight/tracelight/internal/pkg/httputil"
	"github.com/tracelight/tracelight/internal/pkg/metrics"
	"github.com/tracelight/tracelight/internal/pkg/postgres"
	"github.com/tracelight/tracelight/internal/providers"
	providerspostgres "github.com/tracelight/tracelight/internal/providers/postgres"
	"github.com/tracelight/tracelight/internal/version"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, err := app.setupRouter(metricsCtx)
	if err != nil {
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
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	detectorRepo := detectorpostgres.NewRepository(a.db)
	detectorService := detector.NewService(detectorRepo)

	providersRepo := providerspostgres.NewRepository(a.db)
	providerTracker := providers.NewTracker(providersRepo)
	providerTracker.Warm(ctx)
	providersHandler := providers.NewHandler(providerTracker)

	// Channel CRUD stays available even when outbound dispatch is disabled,
	// so the dispatcher is always constructed. Only the incident pipeline's
	// notifier reference honors the enabled flag.
	notificationsRepo := notificationspostgres.NewRepository(a.db)
	dispatcher := notifications.NewDispatcher(notificationsRepo, notifications.Config{
		SendTimeout:    a.config.Notifications.SendTimeout,
		HourlyLimit:    a.config.Notifications.HourlyLimit,
		OutboundPerSec: a.config.Notifications.OutboundPerSec,
		OutboundBurst:  a.config.Notifications.OutboundBurst,
	}, nil,
		discord.NewAdapter(discord.Config{}),
		slack.NewAdapter(slack.Config{}),
	)
	notificationsService := notifications.NewService(notificationsRepo, dispatcher)
	notificationsHandler := notifications.NewHandler(notificationsService)

	var notifier incidents.Notifier
	if a.config.Notifications.Enabled {
		notifier = dispatcher
	} else {
		a.logger.Warn("notifications disabled: incidents will not be dispatched to channels")
	}

	var generator diagnosis.Generator
	if a.config.Diagnosis.Enabled {
		gemini, err := diagnosis.NewGemini(ctx, diagnosis.GeminiConfig{
			APIKey:  a.config.Diagnosis.APIKey,
			Model:   a.config.Diagnosis.Model,
			Timeout: a.config.Diagnosis.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create diagnosis generator: %w", err)
		}
		generator = gemini
	} else {
		a.logger.Info("diagnosis disabled: incidents will be created without root cause analysis")
	}

	incidentsRepo := incidentspostgres.NewRepository(a.db)
	incidentsService := incidents.NewService(
		incidentsRepo,
		detectorService,
		correlation.NewCorrelator(),
		providerTracker,
		generator,
		notifier,
	)
	incidentsHandler := incidents.NewHandler(incidentsService)

	detectorHandler := detector.NewHandler(detectorService, incidentsService)

	r.Route("/api/v1", func(r chi.Router) {
		detectorHandler.RegisterRoutes(r)
		providersHandler.RegisterRoutes(r)
		incidentsHandler.RegisterRoutes(r)
		notificationsHandler.RegisterRoutes(r)
	})

	return r, nil
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
	httputil.Success(w, http.StatusOK, map[string]string{
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
