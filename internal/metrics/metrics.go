// Package metrics provides Prometheus self-observability for the collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for batch outcomes.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
)

// IngestMetrics holds metrics for the write path.
type IngestMetrics struct {
	// BatchesTotal counts WriteBatch calls by outcome.
	BatchesTotal *prometheus.CounterVec

	// PointsAccepted counts rows actually inserted into the point tables.
	PointsAccepted prometheus.Counter

	// PointsDuplicate counts rows dropped by the idempotency guard.
	PointsDuplicate prometheus.Counter

	// BatchLatency tracks WriteBatch wall time.
	BatchLatency prometheus.Histogram
}

// NewIngestMetrics creates and registers ingest metrics with the default
// registry.
func NewIngestMetrics() *IngestMetrics {
	return &IngestMetrics{
		BatchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dcmon",
				Subsystem: "ingest",
				Name:      "batches_total",
				Help:      "WriteBatch calls by outcome.",
			},
			[]string{"status"},
		),
		PointsAccepted: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dcmon",
				Subsystem: "ingest",
				Name:      "points_accepted_total",
				Help:      "Point rows inserted, excluding idempotent duplicates.",
			},
		),
		PointsDuplicate: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dcmon",
				Subsystem: "ingest",
				Name:      "points_duplicate_total",
				Help:      "Point rows dropped as duplicates of stored points.",
			},
		),
		BatchLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "dcmon",
				Subsystem: "ingest",
				Name:      "batch_latency_seconds",
				Help:      "WriteBatch latency.",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

// QueryMetrics holds metrics for the read path.
type QueryMetrics struct {
	// QueriesTotal counts queries by operation (latest, raw, aggregated,
	// rate, summary).
	QueriesTotal *prometheus.CounterVec

	// QueryLatency tracks query wall time by operation.
	QueryLatency *prometheus.HistogramVec
}

// NewQueryMetrics creates and registers query metrics with the default
// registry.
func NewQueryMetrics() *QueryMetrics {
	return &QueryMetrics{
		QueriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dcmon",
				Subsystem: "query",
				Name:      "queries_total",
				Help:      "Queries served by operation.",
			},
			[]string{"op"},
		),
		QueryLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dcmon",
				Subsystem: "query",
				Name:      "latency_seconds",
				Help:      "Query latency by operation.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
}

// RetentionMetrics holds metrics for the retention job.
type RetentionMetrics struct {
	// RunsTotal counts retention runs.
	RunsTotal prometheus.Counter

	// RowsDeleted counts rows deleted by table.
	RowsDeleted *prometheus.CounterVec

	// RowsArchived counts rows written to the parquet archive.
	RowsArchived prometheus.Counter
}

// NewRetentionMetrics creates and registers retention metrics with the
// default registry.
func NewRetentionMetrics() *RetentionMetrics {
	return &RetentionMetrics{
		RunsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dcmon",
				Subsystem: "retention",
				Name:      "runs_total",
				Help:      "Retention job runs.",
			},
		),
		RowsDeleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dcmon",
				Subsystem: "retention",
				Name:      "rows_deleted_total",
				Help:      "Rows deleted by table.",
			},
			[]string{"table"},
		),
		RowsArchived: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dcmon",
				Subsystem: "retention",
				Name:      "rows_archived_total",
				Help:      "Expired rows written to the parquet archive.",
			},
		),
	}
}
