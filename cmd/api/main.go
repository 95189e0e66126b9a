// Package main is the entrypoint for the Tokentill API server.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tokentill/tokentill/internal/activity"
	"github.com/tokentill/tokentill/internal/cache"
	"github.com/tokentill/tokentill/internal/config"
	"github.com/tokentill/tokentill/internal/handler"
	"github.com/tokentill/tokentill/internal/metrics"
	"github.com/tokentill/tokentill/internal/middleware"
	"github.com/tokentill/tokentill/internal/repository"
	"github.com/tokentill/tokentill/internal/server"
	"github.com/tokentill/tokentill/internal/service"
	"github.com/tokentill/tokentill/internal/webhook"
)

func main() {
	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// The webhook repository uses database/sql for its queue queries.
	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open sql connection",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer sqlDB.Close()

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Initialize metrics. The in-memory backend trades the Prometheus
	// registry for a plain counter snapshot, for dev and test setups.
	var (
		registry        *prometheus.Registry
		metricsRecorder metrics.Recorder
		snapshotter     metrics.Snapshotter
	)
	if cfg.MetricsInMemory() {
		inMem := metrics.NewInMemory()
		metricsRecorder = inMem
		snapshotter = inMem
	} else {
		registry = prometheus.NewRegistry()
		metricsRecorder = metrics.NewPrometheus(registry)
	}

	// Initialize repositories and publishers
	activityRepo := repository.NewActivityRepository(repo)
	webhookRepo := webhook.NewRepository(sqlDB)
	eventPublisher := webhook.NewPublisher(webhookRepo, logger)
	activityPublisher := activity.NewPublisher(cacheClient.Client(), logger, metricsRecorder)

	// Initialize services
	accountService := service.NewAccountService(repo, cacheClient, eventPublisher, metricsRecorder)
	transferService := service.NewTransferService(repo, cacheClient, eventPublisher, activityPublisher, cfg.FeeBasisPoints, metricsRecorder)

	// Initialize handlers
	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	accountHandler := handler.NewAccountHandler(accountService, logger)
	transferHandler := handler.NewTransferHandler(transferService, logger)
	activityHandler := handler.NewActivityHandler(activityRepo, logger)
	apiKeyHandler := handler.NewAPIKeyHandler(logger, repo)
	webhookHandler := handler.NewWebhookHandler(webhookRepo, logger, cfg.WebhookAllowInsecure)
	adminHandler := handler.NewAdminHandler(repo, repo, logger)

	// Setup router
	r := setupRouter(routerDeps{
		base:        h,
		health:      healthHandler,
		account:     accountHandler,
		transfer:    transferHandler,
		activity:    activityHandler,
		apiKey:      apiKeyHandler,
		webhook:     webhookHandler,
		admin:       adminHandler,
		repo:        repo,
		cache:       cacheClient,
		registry:    registry,
		snapshotter: snapshotter,
		cfg:         cfg,
		logger:      logger,
	})

	// Create and run server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Background workers share a cancellable context tied to server shutdown.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	if cfg.ActivityWorkerEnabled {
		worker := activity.NewWorker(
			cacheClient.Client(),
			activityRepo,
			logger,
			activity.NewConsumerID(),
			metricsRecorder,
		)
		go func() {
			if err := worker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("activity worker exited", "error", err)
			}
		}()
		srv.OnShutdown("activity worker", worker.Shutdown)
	}

	if cfg.WebhookWorkerEnabled {
		worker := webhook.NewWorker(webhookRepo, logger, metricsRecorder)
		go func() {
			if err := worker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("webhook worker exited", "error", err)
			}
		}()
		srv.OnShutdown("webhook worker", func(ctx context.Context) error {
			cancelWorkers()
			return nil
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"fee_basis_points", cfg.FeeBasisPoints,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routerDeps bundles everything setupRouter needs.
type routerDeps struct {
	base        *handler.Handler
	health      *handler.HealthHandler
	account     *handler.AccountHandler
	transfer    *handler.TransferHandler
	activity    *handler.ActivityHandler
	apiKey      *handler.APIKeyHandler
	webhook     *handler.WebhookHandler
	admin       *handler.AdminHandler
	repo        *repository.Repository
	cache       *cache.Cache
	registry    *prometheus.Registry
	snapshotter metrics.Snapshotter
	cfg         *config.Config
	logger      *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Recoverer(deps.logger))

	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.IsDevelopment = deps.cfg.IsDevelopment()
	r.Use(middleware.Security(securityCfg))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = deps.cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	r.Use(middleware.MaxBodySize(deps.cfg.MaxRequestBodySize))

	// Health endpoints (no auth required)
	r.Get("/healthz", deps.health.Healthz)
	r.Get("/readyz", deps.health.Readyz)

	// Metrics scrape endpoint
	if deps.registry != nil {
		r.Method("GET", "/metrics", promhttp.HandlerFor(deps.registry, promhttp.HandlerOpts{}))
	} else {
		r.Get("/metrics", handler.NewMetricsHandler(deps.snapshotter).Metrics)
	}

	// Root info endpoint
	r.Get("/", deps.base.Hello)

	// Auth middleware configuration
	authCfg := middleware.AuthConfig{
		Logger:     deps.logger,
		Repository: deps.repo,
		Cache:      deps.cache,
	}

	// Rate limit middleware configuration
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:          deps.logger,
		Cache:           deps.cache,
		APIEnabled:      deps.cfg.RateLimitAPIEnabled,
		TransferEnabled: deps.cfg.RateLimitTransferEnabled,
		TransferRPS:     deps.cfg.RateLimitTransferRPS,
		TransferBurst:   deps.cfg.RateLimitTransferBurst,
	}

	// API v1 routes (require authentication)
	r.Route("/api/v1", func(r chi.Router) {
		// Apply auth and rate limit middleware to all API routes
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RateLimitAPI(rateLimitCfg))

		// Account management (requires write scope for mutations)
		r.Route("/accounts", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", deps.account.List)
			r.With(middleware.RequireRead()).Get("/by-authority/{authority}", deps.account.GetByAuthority)
			r.With(middleware.RequireRead()).Get("/{address}", deps.account.Get)
			r.With(middleware.RequireRead()).Get("/{address}/validity", deps.account.Validity)
			r.With(middleware.RequireRead()).Get("/{address}/activity", deps.activity.GetAccountActivity)
			r.With(middleware.RequireRead()).Get("/{address}/transfers", deps.transfer.ListByAccount)
			r.With(middleware.RequireWrite()).Post("/", deps.account.Create)
			r.With(middleware.RequireWrite()).Patch("/{address}", deps.account.Update)
			r.With(middleware.RequireWrite()).Post("/{address}/deactivate", deps.account.Deactivate)
		})

		// Transfers (submission is additionally rate limited per IP)
		r.Route("/transfers", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/fee", deps.transfer.QuoteFee)
			r.With(middleware.RequireRead()).Get("/{id}", deps.transfer.Get)
			r.With(middleware.RequireWrite(), middleware.RateLimitIP(rateLimitCfg)).Post("/", deps.transfer.Create)
		})

		// Webhook endpoint management
		r.Route("/webhooks", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", deps.webhook.List)
			r.With(middleware.RequireRead()).Get("/{id}", deps.webhook.Get)
			r.With(middleware.RequireRead()).Get("/{id}/deliveries", deps.webhook.ListDeliveries)
			r.With(middleware.RequireWrite()).Post("/", deps.webhook.Create)
			r.With(middleware.RequireWrite()).Patch("/{id}", deps.webhook.Update)
			r.With(middleware.RequireWrite()).Delete("/{id}", deps.webhook.Delete)
			r.With(middleware.RequireWrite()).Post("/{id}/rotate-secret", deps.webhook.RotateSecret)
			r.With(middleware.RequireWrite()).Post("/deliveries/{delivery_id}/retry", deps.webhook.RetryDelivery)
		})

		// API key management (requires admin scope for mutations)
		r.Route("/api-keys", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", deps.apiKey.ListAPIKeys)
			r.With(middleware.RequireAdmin()).Post("/", deps.apiKey.CreateAPIKey)
			r.With(middleware.RequireAdmin()).Delete("/{key_id}", deps.apiKey.RevokeAPIKey)
			r.With(middleware.RequireAdmin()).Post("/{key_id}/rotate", deps.apiKey.RotateAPIKey)
		})

		// Admin operations
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Post("/credits", deps.transfer.Credit)
			r.Get("/accounts", deps.admin.LookupAccounts)
			r.Get("/api-keys", deps.admin.ListAPIKeysByUser)
			r.Get("/stats", deps.admin.Stats)
		})
	})

	// 404 and 405 handlers
	r.NotFound(deps.base.NotFound)
	r.MethodNotAllowed(deps.base.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
