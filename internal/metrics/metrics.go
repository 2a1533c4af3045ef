// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Analysis loop metrics
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeplane_analysis_cycles_total",
			Help: "Analysis cycles by outcome",
		},
		[]string{"status"},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "edgeplane_analysis_cycle_duration_seconds",
			Help:    "Duration of one analysis cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	batchRecords = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "edgeplane_analysis_batch_records",
			Help:    "Log records consumed per cycle",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	ttlRecommendations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edgeplane_ttl_recommendations_total",
			Help: "TTL recommendations emitted",
		},
	)

	prefetchRules = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edgeplane_prefetch_rules_total",
			Help: "Prefetch rules emitted",
		},
	)

	explanations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeplane_explanations_total",
			Help: "Explanations generated by method",
		},
		[]string{"method"},
	)

	// Ingest metrics
	logsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edgeplane_logs_ingested_total",
			Help: "Log records accepted by the ingest API",
		},
	)

	logsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edgeplane_logs_rejected_total",
			Help: "Malformed log records rejected by the ingest API",
		},
	)

	// HTTP metrics
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeplane_http_requests_total",
			Help: "HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edgeplane_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// RecordCycle records the outcome and duration of one analysis cycle
func RecordCycle(status string, duration time.Duration, records int) {
	cyclesTotal.WithLabelValues(status).Inc()
	cycleDuration.Observe(duration.Seconds())
	batchRecords.Observe(float64(records))
}

// RecordRecommendations counts emitted recommendations
func RecordRecommendations(ttl, prefetch int) {
	ttlRecommendations.Add(float64(ttl))
	prefetchRules.Add(float64(prefetch))
}

// RecordExplanation counts one generated explanation
func RecordExplanation(method string) {
	explanations.WithLabelValues(method).Inc()
}

// RecordIngest counts accepted and rejected ingest records
func RecordIngest(accepted, rejected int) {
	logsIngested.Add(float64(accepted))
	logsRejected.Add(float64(rejected))
}

// RecordRequest records one HTTP request
func RecordRequest(method, path, status string, duration time.Duration) {
	requestsTotal.WithLabelValues(method, path, status).Inc()
	requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
