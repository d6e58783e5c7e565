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

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/verityair/concierge/internal"
	"github.com/verityair/concierge/internal/billing"
	"github.com/verityair/concierge/internal/handler"
	"github.com/verityair/concierge/internal/metrics"
	"github.com/verityair/concierge/internal/middleware"
	"github.com/verityair/concierge/internal/repository"
	"github.com/verityair/concierge/internal/service"
	"github.com/verityair/concierge/internal/storage"
	"github.com/verityair/concierge/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
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
	logger.Info("database ready")

	// Initialize repository
	repo := repository.New(db)

	// Initialize billing (optional in development)
	var billingService billing.Service
	if cfg.StripeSecretKey != "" {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
			StarterPriceID:       cfg.StripeStarterPriceID,
			ProPriceID:           cfg.StripeProPriceID,
			BusinessPriceID:      cfg.StripeBusinessPriceID,
			ElitePriceID:         cfg.StripeElitePriceID,
			TopUpSinglePriceID:   cfg.StripeTopUpSinglePriceID,
			TopUpFivePackPriceID: cfg.StripeTopUpFivePackPriceID,
			TopUpTenPackPriceID:  cfg.StripeTopUpTenPackPriceID,
		})
		logger.Info("stripe billing configured")
	} else {
		logger.Warn("stripe billing not configured, billing endpoints disabled")
	}

	// Initialize services
	accountService := service.NewAccountService(repo, logger)
	profileService := service.NewProfileService(repo, logger)
	quotaService := service.NewQuotaService(profileService, repo, logger)
	usageService := service.NewUsageService(quotaService, repo, logger)
	topUpService := service.NewTopUpService(db, repo, profileService, logger)
	statsService := service.NewStatsService(profileService, repo, logger)

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(accountService, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)

	// Middleware stacks. Every route gets metrics and logging; authed routes
	// additionally resolve and require a bearer token.
	public := middleware.Stack(metrics.Middleware, loggingMw.Handler)
	authed := middleware.Stack(metrics.Middleware, authMw.WithAccount, loggingMw.Handler, authMw.RequireAccount)

	// Initialize handlers
	accountHandler := handler.NewAccountHandler(accountService, logger)
	profileHandler := handler.NewProfileHandler(profileService, quotaService, logger)
	chatHandler := handler.NewChatHandler(usageService, statsService, logger)
	catalogHandler := handler.NewCatalogHandler(logger)
	topUpHandler := handler.NewTopUpHandler(topUpService, logger)
	billingHandler := handler.NewBillingHandler(billingService, profileService, cfg.BaseURL, logger)
	webhookHandler := handler.NewWebhookHandler(billingService, profileService, topUpService, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics (basic auth)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	accountHandler.RegisterRoutes(mux, public, authed)
	profileHandler.RegisterRoutes(mux, authed)
	chatHandler.RegisterRoutes(mux, authed)
	catalogHandler.RegisterRoutes(mux, public)
	topUpHandler.RegisterRoutes(mux, authed)
	billingHandler.RegisterRoutes(mux, authed)
	webhookHandler.RegisterRoutes(mux)

	// CORS for browser clients of the JSON API
	corsMw := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	// ==========================================================================
	// Start maintenance worker
	// ==========================================================================

	var maintenance *worker.Worker
	if cfg.WorkerEnabled {
		var reports *worker.ReportExporter
		if cfg.ReportExportEnabled {
			objects, err := newStorage(cfg, logger)
			if err != nil {
				return fmt.Errorf("storage initialization failed: %w", err)
			}
			reports = worker.NewReportExporter(repo, objects, logger)
		}

		workerCfg := worker.DefaultConfig()
		workerCfg.PollInterval = cfg.WorkerPollInterval
		workerCfg.StaleSessionCutoff = cfg.StaleSessionCutoff
		workerCfg.ReportExportEnabled = cfg.ReportExportEnabled

		maintenance, err = worker.New(repo, reports, workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		maintenance.Start(ctx)
	}

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: corsMw.Handler(mux),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
		}
	}()

	<-sigChan
	logger.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if maintenance != nil {
		maintenance.Stop()
	}

	logger.Info("graceful shutdown complete")
	return nil
}

// newStorage builds the configured storage backend for report exports.
func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		return storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
		}, logger)
	case storage.ProviderLocal:
		return storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  fmt.Sprintf("%s/files", cfg.BaseURL),
		}, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.StorageProvider)
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
