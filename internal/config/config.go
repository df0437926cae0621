// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Ingest modes.
const (
	IngestSync   = "sync"
	IngestStream = "stream"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL        string        `env:"DATABASE_URL,required"`
	DBMaxConns         int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns         int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBStatementTimeout time.Duration `env:"DB_STATEMENT_TIMEOUT" envDefault:"10s"`

	// Cache (Redis)
	RedisURL      string `env:"REDIS_URL,required"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`

	// Short code cache
	LinkCacheTTL     time.Duration `env:"LINK_CACHE_TTL" envDefault:"24h"`
	NegativeCacheTTL time.Duration `env:"NEGATIVE_CACHE_TTL" envDefault:"5m"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting of the public redirect endpoint, per client IP
	RateLimitRedirectEnabled bool `env:"RATE_LIMIT_REDIRECT_ENABLED" envDefault:"true"`
	RateLimitRedirectRPS     int  `env:"RATE_LIMIT_REDIRECT_RPS" envDefault:"100"`
	RateLimitRedirectBurst   int  `env:"RATE_LIMIT_REDIRECT_BURST" envDefault:"20"`

	// User agent classification: "parser" or "catalog"
	UAStrategy string `env:"UA_STRATEGY" envDefault:"parser"`

	// Geolocation
	GeoEndpointURL    string        `env:"GEO_ENDPOINT"`
	GeoEndpointDevURL string        `env:"GEO_ENDPOINT_DEV"`
	GeoTimeout        time.Duration `env:"GEO_TIMEOUT" envDefault:"4s"`
	GeoFallback       string        `env:"GEO_FALLBACK" envDefault:"none"`
	GeoIPDBPath       string        `env:"GEOIP_DB_PATH"`
	GeoDefaultCountry string        `env:"GEO_DEFAULT_COUNTRY"`
	GeoDefaultCity    string        `env:"GEO_DEFAULT_CITY"`
	GeoCacheTTL       time.Duration `env:"GEO_CACHE_TTL" envDefault:"24h"`

	// Analytics queries
	AnalyticsPageLimit     int    `env:"ANALYTICS_PAGE_LIMIT" envDefault:"10"`
	AnalyticsMaxPageLimit  int    `env:"ANALYTICS_MAX_PAGE_LIMIT" envDefault:"100"`
	AnalyticsDefaultPeriod string `env:"ANALYTICS_DEFAULT_PERIOD" envDefault:"24h"`

	// Click ingestion: "sync" writes clicks inline, "stream" queues them on
	// a Redis stream drained by a background worker
	IngestMode        string `env:"INGEST_MODE" envDefault:"sync"`
	IngestConcurrency int    `env:"INGEST_CONCURRENCY" envDefault:"8"`
	IngestBatchSize   int    `env:"INGEST_BATCH_SIZE" envDefault:"100"`

	// Metrics: "prometheus", "memory" or "none"
	MetricsBackend string `env:"METRICS_BACKEND" envDefault:"prometheus"`

	// CORS configuration for the analytics API
	// Comma-separated list of allowed origins (e.g., "https://dash.example.com")
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

// GeoEndpoint returns the geolocation provider URL for the current
// environment. Development uses GEO_ENDPOINT_DEV when it is set.
func (c *Config) GeoEndpoint() string {
	if c.IsDevelopment() && c.GeoEndpointDevURL != "" {
		return c.GeoEndpointDevURL
	}
	return c.GeoEndpointURL
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

// Validate checks values that env tags cannot express.
func (c *Config) Validate() error {
	switch c.MetricsBackend {
	case "prometheus", "memory", "none":
	default:
		return fmt.Errorf("invalid METRICS_BACKEND %q", c.MetricsBackend)
	}
	switch c.IngestMode {
	case IngestSync:
	case IngestStream:
		if c.IngestConcurrency < 1 || c.IngestBatchSize < 1 {
			return fmt.Errorf("INGEST_CONCURRENCY and INGEST_BATCH_SIZE must be positive")
		}
	default:
		return fmt.Errorf("invalid INGEST_MODE %q", c.IngestMode)
	}
	if c.AnalyticsPageLimit < 1 {
		return fmt.Errorf("ANALYTICS_PAGE_LIMIT must be positive, got %d", c.AnalyticsPageLimit)
	}
	if c.AnalyticsMaxPageLimit < c.AnalyticsPageLimit {
		return fmt.Errorf("ANALYTICS_MAX_PAGE_LIMIT (%d) is below ANALYTICS_PAGE_LIMIT (%d)",
			c.AnalyticsMaxPageLimit, c.AnalyticsPageLimit)
	}
	if c.DBMaxConns < 1 || c.DBMinConns < 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive and DB_MIN_CONNS non-negative")
	}
	if c.GeoTimeout <= 0 {
		return fmt.Errorf("GEO_TIMEOUT must be positive, got %s", c.GeoTimeout)
	}
	if c.RateLimitRedirectEnabled && (c.RateLimitRedirectRPS < 1 || c.RateLimitRedirectBurst < 1) {
		return fmt.Errorf("redirect rate limit needs positive RPS and burst")
	}
	return nil
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
