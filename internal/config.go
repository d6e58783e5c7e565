package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Application base URL (for Stripe redirect URLs)
	BaseURL string

	// CORS configuration for browser clients of the JSON API
	AllowedOrigins []string

	// Stripe Billing Configuration
	// Required in production; billing endpoints respond 503 without them.
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Stripe Price IDs for subscription tiers
	StripeStarterPriceID  string
	StripeProPriceID      string
	StripeBusinessPriceID string
	StripeElitePriceID    string

	// Stripe Price IDs for top-up packages (one-time payments)
	StripeTopUpSinglePriceID   string
	StripeTopUpFivePackPriceID string
	StripeTopUpTenPackPriceID  string

	// Maintenance worker configuration
	WorkerEnabled       bool
	WorkerPollInterval  time.Duration
	StaleSessionCutoff  time.Duration
	ReportExportEnabled bool

	// Storage Configuration for usage-report exports
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// Base URL defaults to localhost for development
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		// Stripe billing (optional in development)
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		// Subscription price IDs
		StripeStarterPriceID:  getEnv("STRIPE_STARTER_PRICE_ID", ""),
		StripeProPriceID:      getEnv("STRIPE_PRO_PRICE_ID", ""),
		StripeBusinessPriceID: getEnv("STRIPE_BUSINESS_PRICE_ID", ""),
		StripeElitePriceID:    getEnv("STRIPE_ELITE_PRICE_ID", ""),

		// Top-up price IDs
		StripeTopUpSinglePriceID:   getEnv("STRIPE_TOPUP_SINGLE_PRICE_ID", ""),
		StripeTopUpFivePackPriceID: getEnv("STRIPE_TOPUP_FIVE_PACK_PRICE_ID", ""),
		StripeTopUpTenPackPriceID:  getEnv("STRIPE_TOPUP_TEN_PACK_PRICE_ID", ""),

		// Worker defaults
		WorkerEnabled:       getEnvBool("WORKER_ENABLED", true),
		WorkerPollInterval:  getEnvDuration("WORKER_POLL_INTERVAL", 10*time.Minute),
		StaleSessionCutoff:  getEnvDuration("STALE_SESSION_CUTOFF", 24*time.Hour),
		ReportExportEnabled: getEnvBool("REPORT_EXPORT_ENABLED", false),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Parse allowed origins from comma-separated environment variable
	originsStr := getEnv("ALLOWED_ORIGINS", "http://localhost:3000")
	for _, origin := range strings.Split(originsStr, ",") {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return nil, fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return nil, fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	// Billing must be fully configured or not at all
	if cfg.StripeSecretKey != "" && cfg.StripeWebhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
