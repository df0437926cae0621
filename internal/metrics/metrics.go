// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Click recording statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Ingest queue statuses.
const (
	PublishSuccess    = "success"
	PublishDropped    = "dropped"
	ProcessSuccess    = "success"
	ProcessFailed     = "failed"
	ProcessDeadLetter = "dead_lettered"
)

// Geolocation lookup outcomes.
const (
	GeoSkipped  = "skipped"
	GeoCacheHit = "cache_hit"
	GeoSuccess  = "success"
	GeoFallback = "fallback"
	GeoDefault  = "default"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// Ingestion metrics
	IncClickRecorded(status string) // status: "success" or "failed"
	IncGeoLookup(outcome string)    // outcome: one of the Geo* constants
	ObserveGeoLookupDuration(duration time.Duration)

	// Ingest queue metrics
	IncClickPublished(status string) // status: "success" or "dropped"
	IncClickProcessed(status string) // status: "success", "failed" or "dead_lettered"
	SetIngestQueueDepth(depth int64)
	ObserveIngestLag(lag time.Duration)

	// Redirect metrics
	IncRedirectCacheHit()
	IncRedirectCacheMiss()

	// Analytics metrics
	ObserveAggregationDuration(report string, duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
