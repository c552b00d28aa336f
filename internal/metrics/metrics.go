// Package metrics defines the prometheus collectors for fetches,
// forwarded batches, tool calls and the collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Fetch Metrics
	FetchPages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenlog_fetch_pages_total",
			Help: "Total number of vendor pages requested",
		},
		[]string{"source"},
	)

	FetchRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenlog_fetch_records_total",
			Help: "Total number of records returned by fetches",
		},
		[]string{"source"},
	)

	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenlog_fetch_errors_total",
			Help: "Total number of fetches stopped early by an error",
		},
		[]string{"source"},
	)

	// Forward Metrics
	ForwardBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenlog_forward_batches_total",
			Help: "Total number of forwarded batches by outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	ForwardDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listenlog_forward_duration_seconds",
			Help:    "Duration of batch deliveries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Tool Metrics
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenlog_tool_calls_total",
			Help: "Total number of tool invocations by status",
		},
		[]string{"tool", "status"}, // "ok", "empty", "invalid"
	)

	// Collector Metrics
	CollectorBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenlog_collector_batches_total",
			Help: "Total number of batches stored by the collector",
		},
		[]string{"endpoint"},
	)

	CollectorRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenlog_collector_records_total",
			Help: "Total number of records stored by the collector",
		},
		[]string{"endpoint"},
	)

	// Daemon Metrics
	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "listenlog_sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful history sync",
		},
	)
)

// RecordFetch records the outcome of one paginated fetch.
func RecordFetch(source string, pages, records int, err error) {
	FetchPages.WithLabelValues(source).Add(float64(pages))
	FetchRecords.WithLabelValues(source).Add(float64(records))
	if err != nil {
		FetchErrors.WithLabelValues(source).Inc()
	}
}

// RecordForward records one batch delivery.
func RecordForward(endpoint, outcome string, duration time.Duration) {
	ForwardBatches.WithLabelValues(endpoint, outcome).Inc()
	ForwardDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordToolCall records one tool invocation.
func RecordToolCall(tool, status string) {
	ToolCalls.WithLabelValues(tool, status).Inc()
}

// RecordCollectorBatch records a stored batch.
func RecordCollectorBatch(endpoint string, records int) {
	CollectorBatches.WithLabelValues(endpoint).Inc()
	CollectorRecords.WithLabelValues(endpoint).Add(float64(records))
}

// RecordSyncSuccess marks a completed daemon sync.
func RecordSyncSuccess(at time.Time) {
	SyncLastSuccess.Set(float64(at.Unix()))
}
