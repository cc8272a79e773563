package authcore

import "sync/atomic"

// MetricID indexes the engine's internal counters.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	MetricRefreshRateLimited
	MetricValidateSuccess
	MetricValidateRejected
	MetricLogout
	MetricLogoutAll
	MetricTokenRevoked
	MetricAccountCreated
	MetricAccountDuplicate
	MetricPasswordChanged
	MetricPasswordUpgraded
	MetricVerificationIssued
	MetricVerificationConfirmed
	MetricIPBanned
	MetricStoreFailure
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricLoginSuccess:          "login_success",
	MetricLoginFailure:          "login_failure",
	MetricLoginRateLimited:      "login_rate_limited",
	MetricRefreshSuccess:        "refresh_success",
	MetricRefreshFailure:        "refresh_failure",
	MetricRefreshReuseDetected:  "refresh_reuse_detected",
	MetricRefreshRateLimited:    "refresh_rate_limited",
	MetricValidateSuccess:       "validate_success",
	MetricValidateRejected:      "validate_rejected",
	MetricLogout:                "logout",
	MetricLogoutAll:             "logout_all",
	MetricTokenRevoked:          "token_revoked",
	MetricAccountCreated:        "account_created",
	MetricAccountDuplicate:      "account_duplicate",
	MetricPasswordChanged:       "password_changed",
	MetricPasswordUpgraded:      "password_upgraded",
	MetricVerificationIssued:    "verification_issued",
	MetricVerificationConfirmed: "verification_confirmed",
	MetricIPBanned:              "ip_banned",
	MetricStoreFailure:          "store_failure",
}

// String returns the stable snake_case name used by exporters.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs returns every defined metric in declaration order.
func MetricIDs() []MetricID {
	ids := make([]MetricID, metricIDCount)
	for i := range ids {
		ids[i] = MetricID(i)
	}
	return ids
}

const cacheLineSize = 64

// Counters are padded to a cache line each so hot counters on different
// cores do not false-share.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed array of atomic counters. Increment is one atomic add
// on the request path; aggregation happens only in Snapshot.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}
	if m == nil || !m.enabled {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
