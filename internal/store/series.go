// Package store - Series registry operations
//
// A series identifies one stream of values: (client, metric name, canonical
// label set, value kind). Series are immutable after creation and are only
// removed by cascading client deletion.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xtxerr/dcmon/internal/errors"
	"github.com/xtxerr/dcmon/internal/model"
)

// =============================================================================
// Series Types
// =============================================================================

// Series represents a series row in the store.
type Series struct {
	ID         int64
	ClientID   int64
	MetricName string
	Labels     map[string]string
	LabelsJSON string
	LabelHash  uint64
	Kind       model.ValueKind
	CreatedAt  time.Time
}

// seriesKey builds the cache and singleflight key for a series identity.
func seriesKey(clientID int64, metric string, hash uint64) string {
	return fmt.Sprintf("%d/%s/%016x", clientID, metric, hash)
}

// cachedSeries is the value stored in the series cache. The kind travels
// with the id so resolutions from the cache enforce the same kind check as
// the cold path.
type cachedSeries struct {
	id   int64
	kind model.ValueKind
}

// signedHash bit-casts the label hash for storage. database/sql rejects
// uint64 values with the high bit set, so the hash crosses the driver
// boundary as int64 and the column is BIGINT.
func signedHash(hash uint64) int64 {
	return int64(hash)
}

// =============================================================================
// GetOrCreate
// =============================================================================

// GetOrCreateSeries resolves (client, metric, labels, kind) to a series id,
// creating the row on first use.
//
// The write path is insert-then-fetch: an INSERT with ON CONFLICT DO
// NOTHING followed by a SELECT on the unique key. Two concurrent
// first-writers both reach the SELECT and observe the same row, so the
// same key can never produce two series. A read-then-write sequence would
// race here.
//
// Resolutions are cached per series key; singleflight collapses concurrent
// misses for the same key into one database round trip.
func (s *Store) GetOrCreateSeries(ctx context.Context, clientID int64, metric string, labels map[string]string, kind model.ValueKind) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: %q", errors.ErrInvalidValueKind, kind)
	}

	hash := model.LabelHash(labels)
	key := seriesKey(clientID, metric, hash)

	if v, ok := s.seriesCache.Load(key); ok {
		cached := v.(cachedSeries)
		if cached.kind != kind {
			return 0, fmt.Errorf("%w: series %d is %s, record is %s",
				errors.ErrInvalidValueKind, cached.id, cached.kind, kind)
		}
		return cached.id, nil
	}

	v, err, _ := s.seriesGroup.Do(key, func() (interface{}, error) {
		id, err := s.getOrCreateSeriesRow(ctx, clientID, metric, labels, hash, kind)
		if err != nil {
			return nil, err
		}
		return cachedSeries{id: id, kind: kind}, nil
	})
	if err != nil {
		return 0, err
	}

	cached := v.(cachedSeries)
	s.seriesCache.Store(key, cached)
	return cached.id, nil
}

func (s *Store) getOrCreateSeriesRow(ctx context.Context, clientID int64, metric string, labels map[string]string, hash uint64, kind model.ValueKind) (int64, error) {
	labelsJSON := model.CanonicalLabels(labels)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO series (client_id, metric_name, labels, label_hash, value_kind)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, clientID, metric, labelsJSON, signedHash(hash), string(kind))
	if err != nil {
		return 0, fmt.Errorf("insert series: %w", err)
	}

	var id int64
	var existingKind string
	err = s.db.QueryRowContext(ctx, `
		SELECT id, value_kind FROM series
		WHERE client_id = ? AND metric_name = ? AND label_hash = ?
	`, clientID, metric, signedHash(hash)).Scan(&id, &existingKind)
	if err != nil {
		return 0, fmt.Errorf("fetch series: %w", err)
	}

	// The unique key does not include the kind; a resubmission of the same
	// series under a different kind is an agent bug, not a new series.
	if existingKind != string(kind) {
		return 0, fmt.Errorf("%w: series %d is %s, record is %s",
			errors.ErrInvalidValueKind, id, existingKind, kind)
	}

	return id, nil
}

// =============================================================================
// Lookup
// =============================================================================

// SeriesByMetric returns all series for the given metric names, optionally
// restricted to a set of clients. Label filtering happens in the query
// engine; this returns the full candidate set with parsed labels.
func (s *Store) SeriesByMetric(ctx context.Context, metricNames []string, clientIDs []int64) ([]Series, error) {
	if len(metricNames) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, client_id, metric_name, labels, label_hash, value_kind, created_at
		FROM series
		WHERE metric_name IN (` + placeholders(len(metricNames)) + `)`

	args := make([]interface{}, 0, len(metricNames)+len(clientIDs))
	for _, m := range metricNames {
		args = append(args, m)
	}

	if len(clientIDs) > 0 {
		query += ` AND client_id IN (` + placeholders(len(clientIDs)) + `)`
		args = append(args, int64Args(clientIDs)...)
	}

	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	return scanSeries(rows)
}

// GetSeries retrieves a single series by id.
func (s *Store) GetSeries(ctx context.Context, id int64) (*Series, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, metric_name, labels, label_hash, value_kind, created_at
		FROM series WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	all, err := scanSeries(rows)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}

func scanSeries(rows *sql.Rows) ([]Series, error) {
	var result []Series

	for rows.Next() {
		var sr Series
		var kind string
		var hash int64
		if err := rows.Scan(&sr.ID, &sr.ClientID, &sr.MetricName, &sr.LabelsJSON,
			&hash, &kind, &sr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		sr.LabelHash = uint64(hash)
		sr.Kind = model.ValueKind(kind)

		labels, err := model.ParseLabels(sr.LabelsJSON)
		if err != nil {
			return nil, err
		}
		sr.Labels = labels

		result = append(result, sr)
	}

	return result, rows.Err()
}
