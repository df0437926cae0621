package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linkpulse"

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	clicksRecorded      *prometheus.CounterVec
	geoLookups          *prometheus.CounterVec
	geoDuration         prometheus.Histogram
	clicksPublished     *prometheus.CounterVec
	clicksProcessed     *prometheus.CounterVec
	ingestQueueDepth    prometheus.Gauge
	ingestLag           prometheus.Histogram
	redirectCache       *prometheus.CounterVec
	aggregationDuration *prometheus.HistogramVec
}

// NewPrometheus creates a recorder backed by its own registry, which also
// carries the Go runtime and process collectors.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		clicksRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_recorded_total",
			Help:      "Click events written, by status.",
		}, []string{"status"}),
		geoLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_lookups_total",
			Help:      "Geolocation lookups, by outcome.",
		}, []string{"outcome"}),
		geoDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geo_lookup_duration_seconds",
			Help:      "Geolocation lookup latency including the secondary attempt.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		}),
		clicksPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_published_total",
			Help:      "Clicks handed to the ingest stream, by status.",
		}, []string{"status"}),
		clicksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_processed_total",
			Help:      "Queued clicks handled by the ingest worker, by status.",
		}, []string{"status"}),
		ingestQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_queue_depth",
			Help:      "Pending plus unread entries in the ingest stream.",
		}),
		ingestLag: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_lag_seconds",
			Help:      "Time between capturing a click and storing it.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		redirectCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirect_cache_total",
			Help:      "Short code cache lookups, by result.",
		}, []string{"result"}),
		aggregationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Analytics report latency, by report.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"report"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// IncClickRecorded increments the click counter for status.
func (p *PrometheusRecorder) IncClickRecorded(status string) {
	p.clicksRecorded.WithLabelValues(status).Inc()
}

// IncGeoLookup increments the geolocation counter for outcome.
func (p *PrometheusRecorder) IncGeoLookup(outcome string) {
	p.geoLookups.WithLabelValues(outcome).Inc()
}

// ObserveGeoLookupDuration records geolocation latency.
func (p *PrometheusRecorder) ObserveGeoLookupDuration(duration time.Duration) {
	p.geoDuration.Observe(duration.Seconds())
}

// IncClickPublished increments the publish counter for status.
func (p *PrometheusRecorder) IncClickPublished(status string) {
	p.clicksPublished.WithLabelValues(status).Inc()
}

// IncClickProcessed increments the worker counter for status.
func (p *PrometheusRecorder) IncClickProcessed(status string) {
	p.clicksProcessed.WithLabelValues(status).Inc()
}

// SetIngestQueueDepth sets the queue depth gauge.
func (p *PrometheusRecorder) SetIngestQueueDepth(depth int64) {
	p.ingestQueueDepth.Set(float64(depth))
}

// ObserveIngestLag records capture-to-store latency.
func (p *PrometheusRecorder) ObserveIngestLag(lag time.Duration) {
	p.ingestLag.Observe(lag.Seconds())
}

// IncRedirectCacheHit increments the cache hit counter.
func (p *PrometheusRecorder) IncRedirectCacheHit() {
	p.redirectCache.WithLabelValues("hit").Inc()
}

// IncRedirectCacheMiss increments the cache miss counter.
func (p *PrometheusRecorder) IncRedirectCacheMiss() {
	p.redirectCache.WithLabelValues("miss").Inc()
}

// ObserveAggregationDuration records analytics report latency.
func (p *PrometheusRecorder) ObserveAggregationDuration(report string, duration time.Duration) {
	p.aggregationDuration.WithLabelValues(report).Observe(duration.Seconds())
}
