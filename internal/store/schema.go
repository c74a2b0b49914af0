package store

import (
	"fmt"

	"github.com/xtxerr/dcmon/internal/logging"
)

var log = logging.Component("store")

// migrate applies the schema. All statements are idempotent, so startup
// after a crash or upgrade is safe.
//
// The unique index on series (client_id, metric_name, label_hash) is the
// dedup guard for concurrent first-writers; the unique (series_id, ts)
// indexes on the point tables are the idempotency guard for retried
// batches.
func (s *Store) migrate() error {
	migrations := []struct {
		name string
		sql  string
	}{
		{
			name: "seq_client_id",
			sql:  `CREATE SEQUENCE IF NOT EXISTS seq_client_id START 1`,
		},
		{
			name: "clients",
			sql: `CREATE TABLE IF NOT EXISTS clients (
				id BIGINT PRIMARY KEY DEFAULT nextval('seq_client_id'),
				name VARCHAR NOT NULL UNIQUE,
				last_seen TIMESTAMP,
				created_at TIMESTAMP DEFAULT now()
			)`,
		},
		{
			name: "seq_series_id",
			sql:  `CREATE SEQUENCE IF NOT EXISTS seq_series_id START 1`,
		},
		{
			name: "series",
			sql: `CREATE TABLE IF NOT EXISTS series (
				id BIGINT PRIMARY KEY DEFAULT nextval('seq_series_id'),
				client_id BIGINT NOT NULL,
				metric_name VARCHAR NOT NULL,
				labels VARCHAR NOT NULL,
				label_hash BIGINT NOT NULL,
				value_kind VARCHAR NOT NULL,
				created_at TIMESTAMP DEFAULT now(),
				UNIQUE (client_id, metric_name, label_hash)
			)`,
		},
		{
			name: "points_int",
			sql: `CREATE TABLE IF NOT EXISTS points_int (
				series_id BIGINT NOT NULL,
				ts BIGINT NOT NULL,
				value BIGINT NOT NULL,
				UNIQUE (series_id, ts)
			)`,
		},
		{
			name: "points_float",
			sql: `CREATE TABLE IF NOT EXISTS points_float (
				series_id BIGINT NOT NULL,
				ts BIGINT NOT NULL,
				value DOUBLE NOT NULL,
				UNIQUE (series_id, ts)
			)`,
		},
		{
			name: "seq_log_id",
			sql:  `CREATE SEQUENCE IF NOT EXISTS seq_log_id START 1`,
		},
		{
			name: "log_entries",
			sql: `CREATE TABLE IF NOT EXISTS log_entries (
				id BIGINT PRIMARY KEY DEFAULT nextval('seq_log_id'),
				client_id BIGINT NOT NULL,
				source VARCHAR NOT NULL,
				line VARCHAR NOT NULL,
				ts BIGINT NOT NULL,
				created_at TIMESTAMP DEFAULT now()
			)`,
		},
		{
			name: "idx_series_metric",
			sql:  `CREATE INDEX IF NOT EXISTS idx_series_metric ON series(metric_name)`,
		},
		{
			name: "idx_points_int_ts",
			sql:  `CREATE INDEX IF NOT EXISTS idx_points_int_ts ON points_int(ts)`,
		},
		{
			name: "idx_points_float_ts",
			sql:  `CREATE INDEX IF NOT EXISTS idx_points_float_ts ON points_float(ts)`,
		},
		{
			name: "idx_log_entries_ts",
			sql:  `CREATE INDEX IF NOT EXISTS idx_log_entries_ts ON log_entries(ts)`,
		},
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
		log.Debug("migration applied", "name", m.name)
	}

	log.Info("schema migration completed", "migrations", len(migrations))
	return nil
}
