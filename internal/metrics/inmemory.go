package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	ClicksRecorded             uint64
	ClicksFailed               uint64
	GeoLookups                 map[string]uint64
	GeoDurationCount           uint64
	GeoDurationTotalNs         int64
	ClicksPublished            uint64
	ClicksDropped              uint64
	ClicksProcessed            map[string]uint64
	IngestQueueDepth           int64
	IngestLagCount             uint64
	RedirectCacheHits          uint64
	RedirectCacheMisses        uint64
	AggregationDurationCount   uint64
	AggregationDurationTotalNs int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	clicksRecorded             uint64
	clicksFailed               uint64
	geoDurationCount           uint64
	geoDurationTotalNs         int64
	clicksPublished            uint64
	clicksDropped              uint64
	ingestQueueDepth           int64
	ingestLagCount             uint64
	redirectCacheHits          uint64
	redirectCacheMisses        uint64
	aggregationDurationCount   uint64
	aggregationDurationTotalNs int64

	mu              sync.Mutex
	geoLookups      map[string]uint64
	clicksProcessed map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		geoLookups:      make(map[string]uint64),
		clicksProcessed: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	lookups := copyCounts(m.geoLookups)
	processed := copyCounts(m.clicksProcessed)
	m.mu.Unlock()

	return Snapshot{
		ClicksRecorded:             atomic.LoadUint64(&m.clicksRecorded),
		ClicksFailed:               atomic.LoadUint64(&m.clicksFailed),
		GeoLookups:                 lookups,
		GeoDurationCount:           atomic.LoadUint64(&m.geoDurationCount),
		GeoDurationTotalNs:         atomic.LoadInt64(&m.geoDurationTotalNs),
		ClicksPublished:            atomic.LoadUint64(&m.clicksPublished),
		ClicksDropped:              atomic.LoadUint64(&m.clicksDropped),
		ClicksProcessed:            processed,
		IngestQueueDepth:           atomic.LoadInt64(&m.ingestQueueDepth),
		IngestLagCount:             atomic.LoadUint64(&m.ingestLagCount),
		RedirectCacheHits:          atomic.LoadUint64(&m.redirectCacheHits),
		RedirectCacheMisses:        atomic.LoadUint64(&m.redirectCacheMisses),
		AggregationDurationCount:   atomic.LoadUint64(&m.aggregationDurationCount),
		AggregationDurationTotalNs: atomic.LoadInt64(&m.aggregationDurationTotalNs),
	}
}

// IncClickRecorded increments the recorded or failed click counter.
func (m *InMemoryRecorder) IncClickRecorded(status string) {
	if status == StatusSuccess {
		atomic.AddUint64(&m.clicksRecorded, 1)
		return
	}
	atomic.AddUint64(&m.clicksFailed, 1)
}

// IncGeoLookup counts a geolocation outcome.
func (m *InMemoryRecorder) IncGeoLookup(outcome string) {
	m.mu.Lock()
	m.geoLookups[outcome]++
	m.mu.Unlock()
}

// ObserveGeoLookupDuration records geolocation latency.
func (m *InMemoryRecorder) ObserveGeoLookupDuration(duration time.Duration) {
	atomic.AddUint64(&m.geoDurationCount, 1)
	atomic.AddInt64(&m.geoDurationTotalNs, duration.Nanoseconds())
}

// IncClickPublished counts a click handed to the ingest queue.
func (m *InMemoryRecorder) IncClickPublished(status string) {
	if status == PublishSuccess {
		atomic.AddUint64(&m.clicksPublished, 1)
		return
	}
	atomic.AddUint64(&m.clicksDropped, 1)
}

// IncClickProcessed counts a queued click handled by the worker.
func (m *InMemoryRecorder) IncClickProcessed(status string) {
	m.mu.Lock()
	m.clicksProcessed[status]++
	m.mu.Unlock()
}

// SetIngestQueueDepth stores the latest queue depth.
func (m *InMemoryRecorder) SetIngestQueueDepth(depth int64) {
	atomic.StoreInt64(&m.ingestQueueDepth, depth)
}

// ObserveIngestLag counts an ingest lag observation.
func (m *InMemoryRecorder) ObserveIngestLag(lag time.Duration) {
	atomic.AddUint64(&m.ingestLagCount, 1)
}

// IncRedirectCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncRedirectCacheHit() {
	atomic.AddUint64(&m.redirectCacheHits, 1)
}

// IncRedirectCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncRedirectCacheMiss() {
	atomic.AddUint64(&m.redirectCacheMisses, 1)
}

// ObserveAggregationDuration records analytics report latency.
func (m *InMemoryRecorder) ObserveAggregationDuration(report string, duration time.Duration) {
	atomic.AddUint64(&m.aggregationDurationCount, 1)
	atomic.AddInt64(&m.aggregationDurationTotalNs, duration.Nanoseconds())
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
