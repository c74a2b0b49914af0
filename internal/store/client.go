// Package store - Client operations
//
// Clients are owned by the registration subsystem; the core only needs an
// identifier and the last-seen heartbeat for default query scoping, plus
// cascading removal.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/xtxerr/dcmon/internal/model"
)

// EnsureClient creates a client row for name if missing and returns its id.
// Safe under concurrent callers: insert-then-fetch on the unique name.
func (s *Store) EnsureClient(ctx context.Context, name string) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (name, last_seen) VALUES (?, now())
		ON CONFLICT DO NOTHING
	`, name)
	if err != nil {
		return 0, fmt.Errorf("insert client: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `SELECT id FROM clients WHERE name = ?`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("fetch client: %w", err)
	}

	return id, nil
}

// GetClient retrieves a client by id. Returns nil when absent.
func (s *Store) GetClient(ctx context.Context, id int64) (*model.Client, error) {
	var c model.Client
	var lastSeen sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, last_seen FROM clients WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &lastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query client: %w", err)
	}

	if lastSeen.Valid {
		c.LastSeen = lastSeen.Time
	}
	return &c, nil
}

// TouchClient updates a client's last-seen heartbeat. The ingestion
// transport calls this once after a successful WriteBatch.
func (s *Store) TouchClient(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE clients SET last_seen = now() WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("touch client: %w", err)
	}
	return nil
}

// ActiveClientIDs returns ids of clients whose heartbeat is at or after
// cutoff. Queries that omit an explicit client list scope themselves to
// this set.
func (s *Store) ActiveClientIDs(ctx context.Context, cutoff time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM clients WHERE last_seen >= ? ORDER BY id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query active clients: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan client id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// DeleteClient removes a client and everything it owns: series, points of
// both kinds, and log entries. This is the only path that deletes series
// rows.
func (s *Store) DeleteClient(ctx context.Context, id int64) error {
	err := s.TransactionContext(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"points_int", "points_float"} {
			q := fmt.Sprintf(`
				DELETE FROM %s WHERE series_id IN (SELECT id FROM series WHERE client_id = ?)
			`, table)
			if _, err := tx.Exec(q, id); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		if _, err := tx.Exec(`DELETE FROM series WHERE client_id = ?`, id); err != nil {
			return fmt.Errorf("delete series: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM log_entries WHERE client_id = ?`, id); err != nil {
			return fmt.Errorf("delete log entries: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM clients WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete client: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Drop cached series ids for the removed client.
	prefix := fmt.Sprintf("%d/", id)
	s.seriesCache.Range(func(k, _ interface{}) bool {
		if strings.HasPrefix(k.(string), prefix) {
			s.seriesCache.Delete(k)
		}
		return true
	})

	return nil
}
