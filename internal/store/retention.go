// Package store - Retention deletes
//
// Each delete is one statement against one table: "everything older than
// cutoff". There is no intermediate state, so an interrupted or repeated
// run just converges on the same result.
package store

import (
	"context"
	"fmt"

	"github.com/xtxerr/dcmon/internal/model"
)

// ExpiredPoint is a point scheduled for deletion, joined with its series
// identity so the archive can name it.
type ExpiredPoint struct {
	SeriesID   int64
	ClientID   int64
	MetricName string
	Kind       model.ValueKind
	Ts         int64
	Value      float64
}

// DeletePointsBefore removes all points of one kind older than cutoff and
// returns the number of rows deleted.
func (s *Store) DeletePointsBefore(ctx context.Context, kind model.ValueKind, cutoff int64) (int64, error) {
	table, err := kindTable(kind)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE ts < ?`, table), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// DeleteLogEntriesBefore removes log entries older than cutoff.
func (s *Store) DeleteLogEntriesBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM log_entries WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete log entries: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// PointsBefore streams the points of one kind older than cutoff, joined
// with series identity. The retention job uses this to archive rows before
// deleting them.
func (s *Store) PointsBefore(ctx context.Context, kind model.ValueKind, cutoff int64) ([]ExpiredPoint, error) {
	table, err := kindTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT p.series_id, s.client_id, s.metric_name, p.ts, CAST(p.value AS DOUBLE)
		FROM %s p
		JOIN series s ON s.id = p.series_id
		WHERE p.ts < ?
		ORDER BY p.ts
	`, table)

	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query expired %s: %w", table, err)
	}
	defer rows.Close()

	var result []ExpiredPoint
	for rows.Next() {
		p := ExpiredPoint{Kind: kind}
		if err := rows.Scan(&p.SeriesID, &p.ClientID, &p.MetricName, &p.Ts, &p.Value); err != nil {
			return nil, fmt.Errorf("scan expired point: %w", err)
		}
		result = append(result, p)
	}

	return result, rows.Err()
}
