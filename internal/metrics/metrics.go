package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Remote catalog traffic
	CatalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "romcatalog_catalog_requests_total",
		Help: "Total number of remote catalog requests.",
	}, []string{"provider", "op", "status"}) // status: ok, error, cancelled

	CatalogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "romcatalog_catalog_request_duration_seconds",
		Help:    "Duration of remote catalog requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "op"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "romcatalog_cache_lookups_total",
		Help: "Detail document cache lookups.",
	}, []string{"provider", "result"}) // result: hit, miss, stale

	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "romcatalog_token_refreshes_total",
		Help: "Authentication token refresh attempts.",
	}, []string{"provider", "status"})

	// Refresh passes
	RefreshOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "romcatalog_refresh_outcomes_total",
		Help: "Entity refresh outcomes.",
	}, []string{"outcome"}) // outcome: updated, no_data, failed, skipped

	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "romcatalog_refresh_pass_duration_seconds",
		Help:    "Duration of a full refresh pass in seconds.",
		Buckets: prometheus.DefBuckets,
	})
)

// ObserveRequest records a finished catalog request.
func ObserveRequest(provider, op, status string, start time.Time) {
	CatalogRequests.WithLabelValues(provider, op, status).Inc()
	CatalogRequestDuration.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
}

// RecordRefreshPass records the time taken for a refresh pass.
func RecordRefreshPass(start time.Time) {
	RefreshDuration.Observe(time.Since(start).Seconds())
}
