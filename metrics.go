package loginguard

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a specific counter or histogram bucket in the in-process
// metrics system.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful login attempts.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts login attempts rejected by the backend.
	MetricLoginFailure
	// MetricLoginBlocked counts login attempts rejected by an active lockout.
	MetricLoginBlocked
	// MetricLoginInvalidInput counts login attempts rejected by local validation.
	MetricLoginInvalidInput
	// MetricLockoutTriggered counts failures that tipped a principal into lockout.
	MetricLockoutTriggered
	// MetricCaptchaRequired counts failures at or past the CAPTCHA threshold.
	MetricCaptchaRequired
	// MetricLedgerUnavailable counts ledger backend failures.
	MetricLedgerUnavailable
	// MetricOfflineSaved counts credentials saved for offline replay.
	MetricOfflineSaved
	// MetricOfflineReplayed counts offline credentials replayed successfully.
	MetricOfflineReplayed
	// MetricRefreshStarted counts refresh episodes that issued a network call.
	MetricRefreshStarted
	// MetricRefreshJoined counts callers that joined an in-flight refresh.
	MetricRefreshJoined
	// MetricRefreshSuccess counts refresh episodes that produced a new token.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refresh episodes that failed.
	MetricRefreshFailure
	// MetricGlobalLogout counts cascading global logouts.
	MetricGlobalLogout
	// MetricTokenStorageFailure counts token store save/delete failures.
	MetricTokenStorageFailure
	// MetricLoginLatency is the login latency histogram.
	MetricLoginLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds cache-line-padded atomic counters and an optional login latency
// histogram. All operations are allocation-free no-ops when disabled.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] instance configured by cfg. When Enabled is
// false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether metric collection is active.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is active.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc atomically increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample into the histogram for id.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricLoginLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current counter value for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a deep copy of all counters and histograms.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricLoginLatency].buckets[i])
		}
		s.Histograms[MetricLoginLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
