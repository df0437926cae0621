package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/penshort/linkpulse/internal/middleware"
)

// RouterConfig collects the handlers and middleware settings of the API.
type RouterConfig struct {
	Logger    *slog.Logger
	Root      *Handler
	Health    *HealthHandler
	Clicks    *ClickHandler
	Analytics *AnalyticsHandler
	// Metrics serves /metrics; nil leaves the route unmounted.
	Metrics http.Handler

	RateLimit      middleware.RateLimitConfig
	CORSOrigins    []string
	IsDevelopment  bool
	MaxRequestBody int64
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))

	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	r.Get("/", cfg.Root.Index)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
		if cfg.MaxRequestBody > 0 {
			r.Use(middleware.MaxBodySize(cfg.MaxRequestBody))
		}

		r.Route("/links/{linkID}", func(r chi.Router) {
			r.Use(middleware.IDParam("linkID"))
			r.Post("/clicks", cfg.Clicks.Record)
			r.Get("/stats", cfg.Analytics.LinkStats)
		})

		r.Get("/clicks", cfg.Analytics.ListClicks)
		r.With(middleware.IDParam("clickID")).Get("/clicks/{clickID}", cfg.Analytics.GetClick)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/general", cfg.Analytics.General)
			r.Get("/top-links", cfg.Analytics.TopLinks)
			r.Get("/geographic", cfg.Analytics.Geographic)
			r.Get("/device-browser-distribution", cfg.Analytics.DeviceBrowserDistribution)
			r.Get("/conversion-rate", cfg.Analytics.ConversionRate)
			r.Get("/time-series", cfg.Analytics.TimeSeries)
		})
	})

	r.With(
		middleware.ShortCodeParam("shortCode"),
		middleware.RateLimitIP(cfg.RateLimit),
	).Get("/r/{shortCode}", cfg.Clicks.Redirect)

	r.NotFound(cfg.Root.NotFound)
	r.MethodNotAllowed(cfg.Root.MethodNotAllowed)

	return r
}
