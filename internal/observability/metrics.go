// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Directory metrics
	DirectoryRequests *prometheus.CounterVec
	SnapshotHolders   prometheus.Gauge
	SnapshotBuildTime prometheus.Histogram
	SkippedAccounts   prometheus.Counter

	// Upstream metrics
	UpstreamFetches    *prometheus.CounterVec
	UpstreamLatency    prometheus.Histogram
	RateLimitedFetches prometheus.Counter

	// Display name metrics
	NameUpdates      *prometheus.CounterVec
	NameCacheLookups *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
	HistoryRows     prometheus.Counter

	// Health metrics
	LastSuccessfulSnapshot prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "rentfree"
	}

	return &Metrics{
		// Directory metrics
		DirectoryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "requests_total",
			Help:      "Total number of directory requests by cache outcome",
		}, []string{"outcome"}),
		SnapshotHolders: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "snapshot_holders",
			Help:      "Number of ranked holders in the most recent snapshot",
		}),
		SnapshotBuildTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "snapshot_build_seconds",
			Help:      "Snapshot pipeline duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		SkippedAccounts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "skipped_accounts_total",
			Help:      "Total number of malformed token accounts skipped during aggregation",
		}),

		// Upstream metrics
		UpstreamFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "fetches_total",
			Help:      "Total number of upstream account fetches by status",
		}, []string{"status"}),
		UpstreamLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "fetch_latency_seconds",
			Help:      "Upstream account fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		RateLimitedFetches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rate_limited_fetches_total",
			Help:      "Total number of upstream fetches rejected for rate limiting",
		}),

		// Display name metrics
		NameUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "names",
			Name:      "updates_total",
			Help:      "Total number of display name update attempts by status",
		}, []string{"status"}),
		NameCacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "names",
			Name:      "cache_lookups_total",
			Help:      "Total number of display name cache lookups by outcome",
		}, []string{"outcome"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
		HistoryRows: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "history_rows_total",
			Help:      "Total number of holder history rows written",
		}),

		// Health metrics
		LastSuccessfulSnapshot: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_snapshot_timestamp",
			Help:      "Unix timestamp of last successful snapshot build",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordDirectoryRequest records a directory request and its cache outcome.
func RecordDirectoryRequest(cached bool) {
	outcome := "miss"
	if cached {
		outcome = "hit"
	}
	DefaultMetrics.DirectoryRequests.WithLabelValues(outcome).Inc()
}

// RecordSnapshotBuilt records a completed snapshot pipeline run.
func RecordSnapshotBuilt(holders, skipped int, seconds float64, capturedAt int64) {
	DefaultMetrics.SnapshotHolders.Set(float64(holders))
	DefaultMetrics.SnapshotBuildTime.Observe(seconds)
	DefaultMetrics.SkippedAccounts.Add(float64(skipped))
	DefaultMetrics.LastSuccessfulSnapshot.Set(float64(capturedAt) / 1000)
}

// RecordUpstreamFetch records an upstream account fetch.
func RecordUpstreamFetch(seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.UpstreamFetches.WithLabelValues(status).Inc()
	DefaultMetrics.UpstreamLatency.Observe(seconds)
}

// RecordRateLimited increments the rate limited fetch counter.
func RecordRateLimited() {
	DefaultMetrics.RateLimitedFetches.Inc()
}

// RecordNameUpdate records a display name update attempt.
func RecordNameUpdate(status string) {
	DefaultMetrics.NameUpdates.WithLabelValues(status).Inc()
}

// RecordNameCacheLookup records a display name cache lookup outcome.
func RecordNameCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	DefaultMetrics.NameCacheLookups.WithLabelValues(outcome).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHistoryRows records holder history rows written.
func RecordHistoryRows(n int) {
	DefaultMetrics.HistoryRows.Add(float64(n))
}
