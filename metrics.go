package authkit

import "sync/atomic"

// MetricID identifies one counter in the in-process metrics set.
type MetricID uint16

const (
	// MetricLoginSuccess counts completed logins (direct or via code).
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts credential, status, and lockout rejections.
	MetricLoginFailure
	// MetricLoginLocked counts logins rejected by the lockout flag.
	MetricLoginLocked
	// MetricCodeIssued counts generated verification codes.
	MetricCodeIssued
	// MetricCodeVerified counts successful code checks.
	MetricCodeVerified
	// MetricCodeRejected counts wrong or expired code submissions.
	MetricCodeRejected
	// MetricCodeExhausted counts checks rejected by the attempt budget.
	MetricCodeExhausted
	// MetricCodeCooldown counts generation requests rejected by cooldown.
	MetricCodeCooldown
	// MetricDeliveryFailed counts failed code deliveries.
	MetricDeliveryFailed
	// MetricTokenIssued counts every signed token.
	MetricTokenIssued
	// MetricTokenRejected counts tokens that failed validation.
	MetricTokenRejected
	// MetricTokenRevoked counts individual and cascaded revocations.
	MetricTokenRevoked
	// MetricRefreshSuccess counts successful refresh rotations.
	MetricRefreshSuccess
	// MetricRateLimited counts issuance calls denied by the limiter.
	MetricRateLimited

	metricIDCount
)

// Metrics holds atomic counters. All methods are no-ops on a disabled
// or nil receiver.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

func newMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot returns a copy of every counter value.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
