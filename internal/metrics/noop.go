package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncClickRecorded is a no-op.
func (n *NoopRecorder) IncClickRecorded(status string) {}

// IncGeoLookup is a no-op.
func (n *NoopRecorder) IncGeoLookup(outcome string) {}

// ObserveGeoLookupDuration is a no-op.
func (n *NoopRecorder) ObserveGeoLookupDuration(duration time.Duration) {}

// IncClickPublished is a no-op.
func (n *NoopRecorder) IncClickPublished(status string) {}

// IncClickProcessed is a no-op.
func (n *NoopRecorder) IncClickProcessed(status string) {}

// SetIngestQueueDepth is a no-op.
func (n *NoopRecorder) SetIngestQueueDepth(depth int64) {}

// ObserveIngestLag is a no-op.
func (n *NoopRecorder) ObserveIngestLag(lag time.Duration) {}

// IncRedirectCacheHit is a no-op.
func (n *NoopRecorder) IncRedirectCacheHit() {}

// IncRedirectCacheMiss is a no-op.
func (n *NoopRecorder) IncRedirectCacheMiss() {}

// ObserveAggregationDuration is a no-op.
func (n *NoopRecorder) ObserveAggregationDuration(report string, duration time.Duration) {}
