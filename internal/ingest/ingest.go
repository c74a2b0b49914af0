// Package ingest implements the write path: batch validation, series
// resolution, and bulk point insertion.
//
// A batch is all-or-nothing at the validation stage: one record with a
// timestamp too far in the future rejects the whole submission, because it
// signals a clock or data problem upstream that blind retries cannot fix.
// Past validation, the per-kind bulk inserts run in one transaction and
// duplicates are dropped by the storage idempotency guard, so an agent
// retrying a failed batch never double-counts.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xtxerr/dcmon/internal/errors"
	"github.com/xtxerr/dcmon/internal/logging"
	"github.com/xtxerr/dcmon/internal/metrics"
	"github.com/xtxerr/dcmon/internal/model"
	"github.com/xtxerr/dcmon/internal/store"
	"github.com/xtxerr/dcmon/internal/validation"
)

var log = logging.Component("ingest")

// MaxFutureSkew is how far ahead of server time a record timestamp may be.
// Anything beyond this rejects the batch; it guards against clock-skewed
// or malicious agents polluting the future of a series.
const MaxFutureSkew = 300 * time.Second

// Service is the ingestion pipeline.
type Service struct {
	store *store.Store
	stats *metrics.IngestMetrics

	// now is replaceable for tests.
	now func() time.Time
}

// New creates an ingestion service. stats may be nil when
// self-observability is not wired up.
func New(st *store.Store, stats *metrics.IngestMetrics) *Service {
	return &Service{
		store: st,
		stats: stats,
		now:   time.Now,
	}
}

// WriteBatch validates and stores a batch of records for an authenticated
// client. It returns the number of rows actually inserted, which is less
// than len(records) when some points were idempotent duplicates.
//
// The caller updates the client's heartbeat after a successful return;
// that side effect belongs to the transport, not the pipeline.
func (s *Service) WriteBatch(ctx context.Context, clientID int64, records []model.Record) (int, error) {
	start := s.now()

	accepted, err := s.writeBatch(ctx, clientID, records)

	if s.stats != nil {
		s.stats.BatchLatency.Observe(time.Since(start).Seconds())
		switch {
		case err == nil:
			s.stats.BatchesTotal.WithLabelValues(metrics.StatusAccepted).Inc()
			s.stats.PointsAccepted.Add(float64(accepted))
			s.stats.PointsDuplicate.Add(float64(len(records) - accepted))
		case errors.IsValidation(err):
			s.stats.BatchesTotal.WithLabelValues(metrics.StatusRejected).Inc()
		default:
			s.stats.BatchesTotal.WithLabelValues(metrics.StatusFailed).Inc()
		}
	}

	return accepted, err
}

func (s *Service) writeBatch(ctx context.Context, clientID int64, records []model.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	if err := s.validateBatch(records); err != nil {
		log.Warn("batch rejected", "client", clientID, "records", len(records), "error", err)
		return 0, err
	}

	// Resolve every series before opening the write transaction; series
	// creation commits independently and a retry will find them cached.
	byKind := map[model.ValueKind][]store.Point{}
	for i := range records {
		r := &records[i]
		seriesID, err := s.store.GetOrCreateSeries(ctx, clientID, r.MetricName, r.Labels, r.ValueKind)
		if err != nil {
			return 0, fmt.Errorf("resolve series for %s: %w", r.MetricName, err)
		}
		byKind[r.ValueKind] = append(byKind[r.ValueKind], store.Point{
			SeriesID: seriesID,
			Ts:       r.Timestamp,
			Value:    r.Value,
		})
	}

	var accepted int64
	err := s.store.TransactionContext(ctx, func(tx *sql.Tx) error {
		for kind, points := range byKind {
			n, err := s.store.InsertPointsTx(tx, kind, points)
			if err != nil {
				return err
			}
			accepted += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store batch: %w", err)
	}

	log.Debug("batch stored", "client", clientID,
		"submitted", len(records), "accepted", accepted)

	return int(accepted), nil
}

// validateBatch checks every record before anything is written. No partial
// acceptance: the first violation fails the call.
func (s *Service) validateBatch(records []model.Record) error {
	horizon := s.now().Add(MaxFutureSkew).Unix()

	for i := range records {
		r := &records[i]

		if r.Timestamp > horizon {
			return fmt.Errorf("%w: %s at %d (server horizon %d)",
				errors.ErrFutureTimestamp, r.MetricName, r.Timestamp, horizon)
		}
		if !r.ValueKind.Valid() {
			return fmt.Errorf("%w: %q on %s", errors.ErrInvalidValueKind, r.ValueKind, r.MetricName)
		}
		if err := validation.ValidateMetricName(r.MetricName); err != nil {
			return err
		}
		if err := validation.ValidateLabels(r.Labels); err != nil {
			return err
		}
	}

	return nil
}

// AppendLogs stores log entries submitted alongside a metrics batch. They
// bypass the series model entirely.
func (s *Service) AppendLogs(ctx context.Context, clientID int64, entries []model.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.store.InsertLogEntries(ctx, clientID, entries)
}
