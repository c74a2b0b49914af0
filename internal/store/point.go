// Package store - Point storage
//
// Points are append-only rows of (series, timestamp, value), split across
// two physical tables by the series' value kind. A duplicate (series, ts)
// pair is silently ignored, never overwritten: first write wins, which is
// what makes agent-side fire-and-forget retries safe.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/xtxerr/dcmon/internal/errors"
	"github.com/xtxerr/dcmon/internal/model"
)

// Point is one row destined for a point table. Value is float64 for both
// kinds; int-kind values are truncated on insert.
type Point struct {
	SeriesID int64
	Ts       int64
	Value    float64
}

// PointRow is one stored point joined with its owning client, as returned
// by the read paths.
type PointRow struct {
	SeriesID int64
	ClientID int64
	Ts       int64
	Value    float64
}

// 3 columns per row; chunks stay well under driver parameter limits.
const maxPointsPerInsert = 200

// kindTable maps a value kind to its physical table.
func kindTable(kind model.ValueKind) (string, error) {
	switch kind {
	case model.KindInt:
		return "points_int", nil
	case model.KindFloat:
		return "points_float", nil
	default:
		return "", fmt.Errorf("%w: %q", errors.ErrInvalidValueKind, kind)
	}
}

// =============================================================================
// Writes
// =============================================================================

// InsertPointsTx bulk-inserts points of one kind inside an existing
// transaction. Returns the number of rows actually inserted; duplicates on
// (series_id, ts) are dropped by ON CONFLICT DO NOTHING and not counted.
func (s *Store) InsertPointsTx(tx *sql.Tx, kind model.ValueKind, points []Point) (int64, error) {
	if len(points) == 0 {
		return 0, nil
	}

	table, err := kindTable(kind)
	if err != nil {
		return 0, err
	}

	var inserted int64
	for i := 0; i < len(points); i += maxPointsPerInsert {
		end := i + maxPointsPerInsert
		if end > len(points) {
			end = len(points)
		}

		query, args := buildPointInsert(table, kind, points[i:end])
		res, err := tx.Exec(query, args...)
		if err != nil {
			return inserted, fmt.Errorf("insert %s chunk %d: %w", table, i/maxPointsPerInsert, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("rows affected: %w", err)
		}
		inserted += n
	}

	return inserted, nil
}

// InsertPoints bulk-inserts points of one kind in its own transaction.
func (s *Store) InsertPoints(ctx context.Context, kind model.ValueKind, points []Point) (int64, error) {
	var inserted int64
	err := s.TransactionContext(ctx, func(tx *sql.Tx) error {
		n, err := s.InsertPointsTx(tx, kind, points)
		inserted = n
		return err
	})
	return inserted, err
}

// buildPointInsert builds a multi-row conflict-ignoring INSERT.
func buildPointInsert(table string, kind model.ValueKind, points []Point) (string, []interface{}) {
	args := make([]interface{}, 0, len(points)*3)

	var query strings.Builder
	query.Grow(100 + len(points)*10)
	query.WriteString("INSERT INTO ")
	query.WriteString(table)
	query.WriteString(" (series_id, ts, value) VALUES ")

	for i, p := range points {
		if i > 0 {
			query.WriteByte(',')
		}
		query.WriteString("(?,?,?)")

		args = append(args, p.SeriesID, p.Ts)
		if kind == model.KindInt {
			args = append(args, int64(p.Value))
		} else {
			args = append(args, p.Value)
		}
	}

	query.WriteString(" ON CONFLICT DO NOTHING")
	return query.String(), args
}

// =============================================================================
// Reads
// =============================================================================

// ReadRange returns all points of one kind for the given series in
// [start, end], ordered by timestamp then series id. Int-kind values are
// cast to DOUBLE so both tables scan identically.
func (s *Store) ReadRange(ctx context.Context, kind model.ValueKind, seriesIDs []int64, start, end int64) ([]PointRow, error) {
	if len(seriesIDs) == 0 {
		return nil, nil
	}

	table, err := kindTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT p.series_id, s.client_id, p.ts, CAST(p.value AS DOUBLE)
		FROM %s p
		JOIN series s ON s.id = p.series_id
		WHERE p.series_id IN (%s) AND p.ts >= ? AND p.ts <= ?
		ORDER BY p.ts, p.series_id
	`, table, placeholders(len(seriesIDs)))

	args := append(int64Args(seriesIDs), start, end)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", table, err)
	}
	defer rows.Close()

	return scanPointRows(rows)
}

// LatestPoint returns the single most recent point across the given series
// of one kind. On a timestamp tie the lowest series id wins, so the result
// is deterministic regardless of storage order.
func (s *Store) LatestPoint(ctx context.Context, kind model.ValueKind, seriesIDs []int64) (PointRow, bool, error) {
	if len(seriesIDs) == 0 {
		return PointRow{}, false, nil
	}

	table, err := kindTable(kind)
	if err != nil {
		return PointRow{}, false, err
	}

	query := fmt.Sprintf(`
		SELECT p.series_id, s.client_id, p.ts, CAST(p.value AS DOUBLE)
		FROM %s p
		JOIN series s ON s.id = p.series_id
		WHERE p.series_id IN (%s)
		ORDER BY p.ts DESC, p.series_id ASC
		LIMIT 1
	`, table, placeholders(len(seriesIDs)))

	var row PointRow
	err = s.db.QueryRowContext(ctx, query, int64Args(seriesIDs)...).
		Scan(&row.SeriesID, &row.ClientID, &row.Ts, &row.Value)
	if err == sql.ErrNoRows {
		return PointRow{}, false, nil
	}
	if err != nil {
		return PointRow{}, false, fmt.Errorf("latest point %s: %w", table, err)
	}

	return row, true, nil
}

// MaxTimestamp returns the maximum timestamp present in any of the given
// series of one kind.
func (s *Store) MaxTimestamp(ctx context.Context, kind model.ValueKind, seriesIDs []int64) (int64, bool, error) {
	if len(seriesIDs) == 0 {
		return 0, false, nil
	}

	table, err := kindTable(kind)
	if err != nil {
		return 0, false, err
	}

	query := fmt.Sprintf(`
		SELECT max(ts) FROM %s WHERE series_id IN (%s)
	`, table, placeholders(len(seriesIDs)))

	var maxTs sql.NullInt64
	err = s.db.QueryRowContext(ctx, query, int64Args(seriesIDs)...).Scan(&maxTs)
	if err != nil {
		return 0, false, fmt.Errorf("max timestamp %s: %w", table, err)
	}
	if !maxTs.Valid {
		return 0, false, nil
	}

	return maxTs.Int64, true, nil
}

// PointsAt returns the points of the given series of one kind that have a
// sample exactly at ts. Series without a sample at ts simply do not appear;
// there is no interpolation or carry-forward.
func (s *Store) PointsAt(ctx context.Context, kind model.ValueKind, seriesIDs []int64, ts int64) ([]PointRow, error) {
	if len(seriesIDs) == 0 {
		return nil, nil
	}

	table, err := kindTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT p.series_id, s.client_id, p.ts, CAST(p.value AS DOUBLE)
		FROM %s p
		JOIN series s ON s.id = p.series_id
		WHERE p.series_id IN (%s) AND p.ts = ?
		ORDER BY p.series_id
	`, table, placeholders(len(seriesIDs)))

	args := append(int64Args(seriesIDs), ts)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("points at %s: %w", table, err)
	}
	defer rows.Close()

	return scanPointRows(rows)
}

func scanPointRows(rows *sql.Rows) ([]PointRow, error) {
	var result []PointRow

	for rows.Next() {
		var r PointRow
		if err := rows.Scan(&r.SeriesID, &r.ClientID, &r.Ts, &r.Value); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		result = append(result, r)
	}

	return result, rows.Err()
}

// CountPoints returns the number of stored points of one kind. Used by
// stats reporting and tests.
func (s *Store) CountPoints(ctx context.Context, kind model.ValueKind) (int64, error) {
	table, err := kindTable(kind)
	if err != nil {
		return 0, err
	}

	var n int64
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
