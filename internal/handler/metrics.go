package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/penshort/linkpulse/internal/metrics"
)

// MetricsHandler exposes in-memory metrics in Prometheus text format. It is
// mounted when METRICS_BACKEND=memory.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "linkpulse_clicks_recorded_total{status=\"success\"} %d\n", snap.ClicksRecorded)
	writeMetric(w, "linkpulse_clicks_recorded_total{status=\"failed\"} %d\n", snap.ClicksFailed)

	writeLabeled(w, "linkpulse_geo_lookups_total", "outcome", snap.GeoLookups)
	writeMetric(w, "linkpulse_geo_lookup_duration_seconds_count %d\n", snap.GeoDurationCount)
	writeMetric(w, "linkpulse_geo_lookup_duration_seconds_sum %.6f\n", float64(snap.GeoDurationTotalNs)/1e9)

	writeMetric(w, "linkpulse_ingest_published_total{status=\"success\"} %d\n", snap.ClicksPublished)
	writeMetric(w, "linkpulse_ingest_published_total{status=\"dropped\"} %d\n", snap.ClicksDropped)
	writeLabeled(w, "linkpulse_ingest_processed_total", "status", snap.ClicksProcessed)
	writeMetric(w, "linkpulse_ingest_queue_depth %d\n", snap.IngestQueueDepth)
	writeMetric(w, "linkpulse_ingest_lag_seconds_count %d\n", snap.IngestLagCount)

	writeMetric(w, "linkpulse_redirect_cache_hits_total %d\n", snap.RedirectCacheHits)
	writeMetric(w, "linkpulse_redirect_cache_misses_total %d\n", snap.RedirectCacheMisses)

	writeMetric(w, "linkpulse_aggregation_duration_seconds_count %d\n", snap.AggregationDurationCount)
	writeMetric(w, "linkpulse_aggregation_duration_seconds_sum %.6f\n", float64(snap.AggregationDurationTotalNs)/1e9)
}

// writeLabeled writes one sample per label value, in label order.
func writeLabeled(w http.ResponseWriter, name, label string, counts map[string]uint64) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, k, counts[k])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
