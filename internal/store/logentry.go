// Package store - Agent log storage
//
// Log entries submitted alongside metric batches land here unchanged; they
// are outside the series model and only ever appended, read back for
// display, and pruned by retention.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/xtxerr/dcmon/internal/model"
)

const maxLogsPerInsert = 100

// InsertLogEntries appends log entries for a client.
func (s *Store) InsertLogEntries(ctx context.Context, clientID int64, entries []model.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	for i := 0; i < len(entries); i += maxLogsPerInsert {
		end := i + maxLogsPerInsert
		if end > len(entries) {
			end = len(entries)
		}

		chunk := entries[i:end]
		args := make([]interface{}, 0, len(chunk)*4)

		var query strings.Builder
		query.WriteString(`INSERT INTO log_entries (client_id, source, line, ts) VALUES `)
		for j, e := range chunk {
			if j > 0 {
				query.WriteByte(',')
			}
			query.WriteString("(?,?,?,?)")
			args = append(args, clientID, e.Source, e.Line, e.Timestamp)
		}

		if _, err := s.db.ExecContext(ctx, query.String(), args...); err != nil {
			return fmt.Errorf("insert log entries: %w", err)
		}
	}

	return nil
}

// RecentLogEntries returns the most recent log entries for a client,
// newest first.
func (s *Store) RecentLogEntries(ctx context.Context, clientID int64, limit int) ([]model.LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source, line, ts FROM log_entries
		WHERE client_id = ?
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(&e.Source, &e.Line, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
