package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks classification requests by status class (2xx, 4xx, 429, 5xx, network)
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labeler_requests_total",
			Help: "Total number of classification requests",
		},
		[]string{"status"},
	)

	// RetriesTotal tracks retry waits by cause
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labeler_retries_total",
			Help: "Total number of retry waits",
		},
		[]string{"cause"},
	)

	// RequestLatency tracks classification round trip latency
	RequestLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "labeler_request_latency_seconds",
			Help:    "Classification request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// InFlight tracks requests currently holding a rate limiter permit
	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "labeler_requests_in_flight",
			Help: "Classification requests currently in flight",
		},
	)

	// OutcomesTotal tracks record outcomes by kind (parsed, empty, client_error, exhausted, aborted)
	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labeler_outcomes_total",
			Help: "Total number of record outcomes",
		},
		[]string{"kind"},
	)

	// ParseStrategyTotal tracks which parser strategy resolved a reply
	ParseStrategyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labeler_parse_strategy_total",
			Help: "Replies resolved per parser strategy",
		},
		[]string{"strategy"},
	)

	// RowsWritten tracks rows appended to the output
	RowsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "labeler_rows_written_total",
			Help: "Total number of rows written to the output",
		},
	)

	// WriteCursor tracks the next index to be written
	WriteCursor = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "labeler_write_cursor",
			Help: "Next record index to be written",
		},
	)

	// PendingOutcomes tracks completions waiting for a lower index
	PendingOutcomes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "labeler_pending_outcomes",
			Help: "Completed outcomes waiting for a lower index",
		},
	)

	// CheckpointErrors tracks failed checkpoint writes
	CheckpointErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "labeler_checkpoint_errors_total",
			Help: "Total number of failed checkpoint writes",
		},
	)
)
