package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/labsnap/internal"
	"github.com/DukeRupert/labsnap/internal/ai"
	"github.com/DukeRupert/labsnap/internal/ai/anthropic"
	"github.com/DukeRupert/labsnap/internal/ai/mock"
	"github.com/DukeRupert/labsnap/internal/ai/openai"
	"github.com/DukeRupert/labsnap/internal/auth"
	"github.com/DukeRupert/labsnap/internal/billing"
	"github.com/DukeRupert/labsnap/internal/clock"
	"github.com/DukeRupert/labsnap/internal/countdown"
	"github.com/DukeRupert/labsnap/internal/handler"
	"github.com/DukeRupert/labsnap/internal/metrics"
	"github.com/DukeRupert/labsnap/internal/middleware"
	"github.com/DukeRupert/labsnap/internal/service"
	"github.com/DukeRupert/labsnap/internal/storage"
	"github.com/DukeRupert/labsnap/internal/store"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// countdownPruneInterval is how often idle countdown timers are dropped.
const countdownPruneInterval = time.Minute

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	clk := clock.System{Location: cfg.Location}
	checks := make(map[string]handler.HealthCheck)

	// ==========================================================================
	// Record store (Redis, optional)
	// ==========================================================================

	var primary store.RecordStore
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			// The resilient store keeps serving from memory until Redis is back.
			logger.Warn("Redis unreachable at startup", "error", err)
		} else {
			logger.Info("Redis ready")
		}
		cancel()

		primary = store.NewRedisStore(rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		logger.Warn("REDIS_URL not set, plan and usage records are kept in memory")
	}
	records := store.NewResilient(primary, logger)

	// ==========================================================================
	// History store (Postgres, optional)
	// ==========================================================================

	var history store.HistoryStore
	if cfg.DatabaseUrl != "" {
		db, err := sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}

		// Run migrations
		if err := internal.RunMigrations(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Database ready")

		history = store.NewPostgresHistory(db)
		checks["database"] = db.PingContext
	} else {
		logger.Warn("DATABASE_URL not set, history is kept in memory")
		history = store.NewMemoryHistory()
	}

	// ==========================================================================
	// Photo storage
	// ==========================================================================

	var files storage.Storage
	var localFiles bool
	switch cfg.StorageProvider {
	case storage.ProviderS3:
		files, err = storage.NewS3Storage(storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			BucketName:      cfg.S3BucketName,
			PublicURL:       cfg.S3PublicURL,
		}, logger)
	default:
		files, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
		localFiles = true
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// ==========================================================================
	// Analysis provider and identity
	// ==========================================================================

	analyzer, err := newAnalyzer(cfg, logger)
	if err != nil {
		return fmt.Errorf("ai provider initialization failed: %w", err)
	}

	var identities auth.Provider = auth.DemoProvider{}
	if cfg.AuthJWTSecret != "" {
		identities, err = auth.NewJWTProvider(cfg.AuthJWTSecret)
		if err != nil {
			return fmt.Errorf("auth provider initialization failed: %w", err)
		}
	} else {
		logger.Warn("AUTH_JWT_SECRET not set, every caller is the demo user")
	}

	// ==========================================================================
	// Services
	// ==========================================================================

	countdowns := countdown.NewRegistry()
	defer countdowns.Close()

	meteringService := service.NewMeteringService(records, countdowns, clk, logger)
	solveService := service.NewSolveService(meteringService, analyzer, service.NewImageProcessor(), history, files, clk, logger)
	historyService := service.NewHistoryService(history, files, meteringService, logger)
	checkoutService := service.NewCheckoutService(billing.NewProcessor(clk, cfg.CheckoutProcessingDelay), meteringService, logger)

	// Initialize middleware
	isSecure := cfg.Env != "development"
	identityMw := middleware.NewIdentityMiddleware(identities, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	limiter := middleware.NewRateLimiter(rdb, middleware.PerMinute(cfg.RateLimitPerMinute), logger)

	if cfg.MetricsUsername == "" && cfg.MetricsPassword == "" {
		logger.Warn("METRICS_USERNAME and METRICS_PASSWORD not set, /metrics is unprotected")
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	handler.NewHealthHandler(checks, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	handler.NewUsageHandler(meteringService, logger).RegisterRoutes(mux)
	handler.NewSolveHandler(solveService, logger).RegisterRoutes(mux, limiter.Handler)
	handler.NewCountdownHandler(countdowns, handler.DefaultKeepAlive, logger).RegisterRoutes(mux)
	handler.NewCheckoutHandler(checkoutService, logger).RegisterRoutes(mux)
	handler.NewHistoryHandler(historyService, logger).RegisterRoutes(mux)
	if localFiles {
		handler.NewFileHandler(files, logger).RegisterRoutes(mux)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	root := middleware.Stack(
		metrics.Middleware,
		securityMw.Handler,
		identityMw.Handler,
		loggingMw.Handler,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.AIRequestTimeout*time.Duration(cfg.AIMaxRetries) + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Drop idle countdown timers in the background
	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go pruneCountdowns(pruneCtx, countdowns, logger)

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started",
			"address", server.Addr,
			"env", cfg.Env,
			"ai_provider", cfg.AIProvider,
			"storage_provider", cfg.StorageProvider,
			"timezone", cfg.Location.String(),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	// Let background history writes land before the stores close
	if err := solveService.Drain(shutdownCtx); err != nil {
		logger.Error("History writes still pending at shutdown", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newAnalyzer builds the configured AI provider.
func newAnalyzer(cfg *internal.Config, logger *slog.Logger) (ai.Analyzer, error) {
	providerCfg := ai.ProviderConfig{
		MaxRetries:     cfg.AIMaxRetries,
		RetryBaseDelay: cfg.AIRetryBaseDelay,
		RequestTimeout: cfg.AIRequestTimeout,
	}

	switch cfg.AIProvider {
	case "openai":
		provider, err := openai.New(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			Model:          cfg.OpenAIModel,
			ProviderConfig: providerCfg,
		}, logger)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case "anthropic":
		provider, err := anthropic.New(anthropic.Config{
			APIKey:         cfg.AnthropicAPIKey,
			Model:          cfg.AnthropicModel,
			ProviderConfig: providerCfg,
		}, logger)
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		logger.Warn("Using mock AI provider")
		return mock.New(logger), nil
	}
}

func pruneCountdowns(ctx context.Context, countdowns *countdown.Registry, logger *slog.Logger) {
	ticker := time.NewTicker(countdownPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := countdowns.Prune(); n > 0 {
				logger.Debug("pruned idle countdowns", "count", n)
			}
		}
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
