// Package main is the entrypoint for the LinkPulse API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/penshort/linkpulse/internal/agent"
	"github.com/penshort/linkpulse/internal/analytics"
	"github.com/penshort/linkpulse/internal/cache"
	"github.com/penshort/linkpulse/internal/config"
	"github.com/penshort/linkpulse/internal/geo"
	"github.com/penshort/linkpulse/internal/handler"
	"github.com/penshort/linkpulse/internal/ingest"
	"github.com/penshort/linkpulse/internal/metrics"
	"github.com/penshort/linkpulse/internal/middleware"
	"github.com/penshort/linkpulse/internal/repository"
	"github.com/penshort/linkpulse/internal/server"
	"github.com/penshort/linkpulse/internal/service"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	repo, err := repository.New(ctx, cfg.DatabaseURL,
		repository.WithMaxConns(cfg.DBMaxConns),
		repository.WithMinConns(cfg.DBMinConns),
		repository.WithStatementTimeout(cfg.DBStatementTimeout),
	)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return err
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.WithPoolSize(cfg.RedisPoolSize))
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return err
	}
	defer cacheClient.Close()
	cacheClient.SetLinkTTLs(cfg.LinkCacheTTL, cfg.NegativeCacheTTL)
	logger.Info("connected to Redis")

	recorder, metricsHandler := initMetrics(cfg.MetricsBackend)

	classifier, err := agent.New(cfg.UAStrategy)
	if err != nil {
		return err
	}

	resolver, err := geo.NewResolver(geo.Config{
		Endpoint:       cfg.GeoEndpoint(),
		Timeout:        cfg.GeoTimeout,
		Fallback:       geo.Fallback(cfg.GeoFallback),
		GeoIPDBPath:    cfg.GeoIPDBPath,
		DefaultCountry: cfg.GeoDefaultCountry,
		DefaultCity:    cfg.GeoDefaultCity,
		CacheTTL:       cfg.GeoCacheTTL,
	}, geo.NewHTTPClient(cfg.GeoTimeout), cacheClient, logger, recorder)
	if err != nil {
		return err
	}
	defer resolver.Close()

	clicks := service.NewClickRecorder(repo, repo, repo, classifier, resolver, logger, recorder)
	clicks.SetLinkCache(cacheClient)

	reports := analytics.NewService(repo, repo, repo, analytics.Config{
		DefaultLimit:  cfg.AnalyticsPageLimit,
		MaxLimit:      cfg.AnalyticsMaxPageLimit,
		DefaultPeriod: cfg.AnalyticsDefaultPeriod,
	}, logger, recorder)

	var (
		publisher handler.ClickPublisher
		streamPub *ingest.Publisher
		worker    *ingest.Worker
	)
	if cfg.IngestMode == config.IngestStream {
		streamPub = ingest.NewPublisher(cacheClient.Client(), clicks, logger, recorder)
		publisher = streamPub
		worker = ingest.NewWorker(cacheClient.Client(), clicks, logger, ingest.NewConsumerID(), recorder)
		worker.SetConcurrency(cfg.IngestConcurrency)
		worker.SetBatchSize(cfg.IngestBatchSize)
	}

	health := handler.NewHealthHandler(logger).
		AddCheck("postgres", repo).
		AddCheck("redis", cacheClient)

	router := handler.NewRouter(handler.RouterConfig{
		Logger:    logger,
		Root:      handler.New(version),
		Health:    health,
		Clicks:    handler.NewClickHandler(clicks, publisher, logger),
		Analytics: handler.NewAnalyticsHandler(reports, logger),
		Metrics:   metricsHandler,
		RateLimit: middleware.RateLimitConfig{
			Logger:  logger,
			Limiter: cacheClient,
			Enabled: cfg.RateLimitRedirectEnabled,
			RPS:     cfg.RateLimitRedirectRPS,
			Burst:   cfg.RateLimitRedirectBurst,
		},
		CORSOrigins:    cfg.GetCORSAllowedOrigins(),
		IsDevelopment:  cfg.IsDevelopment(),
		MaxRequestBody: cfg.MaxRequestBodySize,
	})

	srv := server.New(router, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     2 * cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	if worker != nil {
		srv.Go("ingest-worker", worker.Run)
		srv.OnShutdown("ingest-worker", worker.Shutdown)
		// Hooks run last-registered first, so pending publishes finish
		// before the worker stops.
		srv.OnShutdown("ingest-publisher", streamPub.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"version", version,
		"ingest_mode", cfg.IngestMode,
		"ua_strategy", cfg.UAStrategy,
		"geo_fallback", cfg.GeoFallback,
		"metrics_backend", cfg.MetricsBackend,
	)

	return srv.Run(ctx)
}

// initMetrics selects the metrics backend. The returned handler is nil when
// /metrics should not be mounted.
func initMetrics(backend string) (metrics.Recorder, http.Handler) {
	switch backend {
	case "prometheus":
		rec := metrics.NewPrometheus()
		return rec, rec.Handler()
	case "memory":
		rec := metrics.NewInMemory()
		return rec, http.HandlerFunc(handler.NewMetricsHandler(rec).Metrics)
	default:
		return metrics.NewNoop(), nil
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "linkpulse")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// redactURL drops the password from a connection URL.
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
