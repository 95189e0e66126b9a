// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/tokentill/tokentill/internal/model"
)

// Supported metrics backends.
const (
	MetricsBackendPrometheus = "prometheus"
	MetricsBackendInMemory   = "inmemory"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Transfer fee rate in basis points (100 = 1%, max 10000 = 100%)
	FeeBasisPoints uint64 `env:"FEE_BASIS_POINTS" envDefault:"100"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Metrics backend: "prometheus" or "inmemory".
	// The in-memory backend serves counters without a registry, for dev and test setups.
	MetricsBackend string `env:"METRICS_BACKEND" envDefault:"prometheus"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitAPIEnabled      bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitTransferEnabled bool `env:"RATE_LIMIT_TRANSFER_ENABLED" envDefault:"true"`
	RateLimitTransferRPS     int  `env:"RATE_LIMIT_TRANSFER_RPS" envDefault:"50"`
	RateLimitTransferBurst   int  `env:"RATE_LIMIT_TRANSFER_BURST" envDefault:"10"`

	// Background workers
	ActivityWorkerEnabled bool `env:"ACTIVITY_WORKER_ENABLED" envDefault:"true"`
	WebhookWorkerEnabled  bool `env:"WEBHOOK_WORKER_ENABLED" envDefault:"true"`

	// Allow plain-HTTP webhook targets (development only)
	WebhookAllowInsecure bool `env:"WEBHOOK_ALLOW_INSECURE" envDefault:"false"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MetricsInMemory returns true if the in-memory metrics backend is selected.
func (c *Config) MetricsInMemory() bool {
	return c.MetricsBackend == MetricsBackendInMemory
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.FeeBasisPoints > model.MaxFeeBasisPoints {
		return nil, fmt.Errorf("FEE_BASIS_POINTS must be at most %d, got %d", model.MaxFeeBasisPoints, cfg.FeeBasisPoints)
	}

	if cfg.MetricsBackend != MetricsBackendPrometheus && cfg.MetricsBackend != MetricsBackendInMemory {
		return nil, fmt.Errorf("METRICS_BACKEND must be %q or %q, got %q", MetricsBackendPrometheus, MetricsBackendInMemory, cfg.MetricsBackend)
	}

	return cfg, nil
}

