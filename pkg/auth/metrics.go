package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks engine-level Prometheus metrics.
//
// All metrics use the auth_ prefix. Counters are cheap enough to update on
// every login and cache access.
type Metrics struct {
	// LoginAttempts counts logins by merged outcome
	LoginAttempts *prometheus.CounterVec

	// CacheHits and CacheMisses count authorization cache lookups
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// StoreReloads counts background file-reload cycles by status
	StoreReloads *prometheus.CounterVec
}

// NewMetrics creates and registers the engine metrics.
//
// Panics if registration fails (expected during initialization only).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_attempts_total",
				Help: "Total login attempts by merged outcome",
			},
			[]string{"outcome"}, // "success", "failure", "too_many_attempts", "password_change_required", "infrastructure_error"
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_cache_hits_total",
				Help: "Authorization cache hits",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_cache_misses_total",
				Help: "Authorization cache misses",
			},
		),
		StoreReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_store_reloads_total",
				Help: "Background store reload cycles by status",
			},
			[]string{"status"}, // "applied", "unchanged", "rejected"
		),
	}

	if reg != nil {
		reg.MustRegister(m.LoginAttempts, m.CacheHits, m.CacheMisses, m.StoreReloads)
	}
	return m
}

// ReloadObserver adapts the metrics to the file store's reload callback.
func (m *Metrics) ReloadObserver() func(status string) {
	return func(status string) {
		m.StoreReloads.WithLabelValues(status).Inc()
	}
}
