// Package geo resolves client IP addresses to a country and city.
//
// A lookup tries the configured HTTP provider once, then at most one
// secondary source, then falls back to a configured default location.
// Failures are logged and counted but never returned to the caller.
package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/penshort/linkpulse/internal/cache"
	"github.com/penshort/linkpulse/internal/clientip"
	"github.com/penshort/linkpulse/internal/metrics"
	"github.com/penshort/linkpulse/internal/model"
)

// Fallback names the secondary source tried after the provider fails.
type Fallback string

const (
	// FallbackNone skips the secondary attempt.
	FallbackNone Fallback = "none"
	// FallbackSelfDiscovery asks the provider to locate the caller's own address.
	FallbackSelfDiscovery Fallback = "self_discovery"
	// FallbackGeoIPDB looks the address up in a local GeoLite2 City database.
	FallbackGeoIPDB Fallback = "geoip_db"
)

// Defaults.
const (
	DefaultTimeout  = 4 * time.Second
	DefaultCacheTTL = 24 * time.Hour
)

// Config configures a Resolver.
type Config struct {
	// Endpoint is the provider URL. It may already carry a query string.
	Endpoint string
	// Timeout bounds each outbound attempt.
	Timeout time.Duration
	// Fallback selects the secondary attempt.
	Fallback Fallback
	// GeoIPDBPath is the GeoLite2 City database used by FallbackGeoIPDB.
	GeoIPDBPath string
	// DefaultCountry and DefaultCity are returned when every attempt fails.
	// Both empty means an unresolved location.
	DefaultCountry string
	DefaultCity    string
	// CacheTTL is how long provider answers are cached.
	CacheTTL time.Duration
}

// LocationCache stores provider answers by IP.
type LocationCache interface {
	GetLocation(ctx context.Context, ip string) (model.Location, error)
	SetLocation(ctx context.Context, ip string, loc model.Location, ttl time.Duration) error
}

// Resolver resolves IP addresses to locations.
type Resolver struct {
	cfg     Config
	client  *http.Client
	cache   LocationCache
	cityDB  cityReader
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewResolver creates a Resolver. cache may be nil. When the fallback is
// FallbackGeoIPDB the database is opened here and released by Close.
func NewResolver(cfg Config, client *http.Client, cache LocationCache, logger *slog.Logger, recorder metrics.Recorder) (*Resolver, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Fallback == "" {
		cfg.Fallback = FallbackNone
	}
	if client == nil {
		client = NewHTTPClient(cfg.Timeout)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	r := &Resolver{
		cfg:     cfg,
		client:  client,
		cache:   cache,
		logger:  logger.With("component", "geo"),
		metrics: recorder,
	}

	switch cfg.Fallback {
	case FallbackNone, FallbackSelfDiscovery:
	case FallbackGeoIPDB:
		db, err := openCityDB(cfg.GeoIPDBPath)
		if err != nil {
			return nil, err
		}
		r.cityDB = db
	default:
		return nil, fmt.Errorf("unknown geolocation fallback %q", cfg.Fallback)
	}

	return r, nil
}

// Close releases the local database, if any.
func (r *Resolver) Close() error {
	if r.cityDB == nil {
		return nil
	}
	return r.cityDB.Close()
}

// Resolve returns the location of ip. Addresses that are empty, private or
// loopback are never sent anywhere and resolve to an empty Location.
func (r *Resolver) Resolve(ctx context.Context, ip string) model.Location {
	if !clientip.IsRoutable(ip) {
		r.metrics.IncGeoLookup(metrics.GeoSkipped)
		return model.Location{}
	}

	start := time.Now()
	defer func() {
		r.metrics.ObserveGeoLookupDuration(time.Since(start))
	}()

	if r.cache != nil {
		loc, err := r.cache.GetLocation(ctx, ip)
		if err == nil {
			r.metrics.IncGeoLookup(metrics.GeoCacheHit)
			return loc
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn("geolocation cache read failed", "ip", ip, "error", err)
		}
	}

	loc, err := r.lookup(ctx, ip)
	if err == nil {
		r.metrics.IncGeoLookup(metrics.GeoSuccess)
		r.store(ctx, ip, loc)
		return loc
	}
	r.logger.Warn("geolocation lookup failed", "ip", ip, "error", err)

	if ctx.Err() == nil {
		if loc, ok := r.secondary(ctx, ip); ok {
			r.metrics.IncGeoLookup(metrics.GeoFallback)
			return loc
		}
	}

	r.metrics.IncGeoLookup(metrics.GeoDefault)
	return r.defaultLocation()
}

// secondary performs the single configured fallback attempt.
func (r *Resolver) secondary(ctx context.Context, ip string) (model.Location, bool) {
	switch r.cfg.Fallback {
	case FallbackSelfDiscovery:
		loc, err := r.lookup(ctx, "")
		if err != nil {
			r.logger.Warn("geolocation self discovery failed", "error", err)
			return model.Location{}, false
		}
		return loc, true
	case FallbackGeoIPDB:
		loc, err := lookupCity(r.cityDB, ip)
		if err != nil {
			r.logger.Warn("geolocation database lookup failed", "ip", ip, "error", err)
			return model.Location{}, false
		}
		return loc, true
	default:
		return model.Location{}, false
	}
}

func (r *Resolver) store(ctx context.Context, ip string, loc model.Location) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetLocation(ctx, ip, loc, r.cfg.CacheTTL); err != nil {
		r.logger.Warn("geolocation cache write failed", "ip", ip, "error", err)
	}
}

func (r *Resolver) defaultLocation() model.Location {
	if r.cfg.DefaultCountry == "" && r.cfg.DefaultCity == "" {
		return model.Location{}
	}
	return model.NewLocation(r.cfg.DefaultCountry, r.cfg.DefaultCity)
}
