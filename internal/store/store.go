// Package store records operation results taken by the wbemcli tool so past
// enumerations can be reviewed offline. It is a CLI collaborator only; the
// wbem client itself never caches.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Snapshot is one recorded operation result
type Snapshot struct {
	ID        int64           `json:"id"`
	Host      string          `json:"host"`
	Operation string          `json:"operation"`
	Target    string          `json:"target"`
	Reference string          `json:"reference,omitempty"`
	Results   json.RawMessage `json:"results,omitempty"`
	TakenAt   time.Time       `json:"taken_at"`
}

// Store persists snapshots in SQLite
type Store struct {
	db *sql.DB
}

// Open creates or opens the snapshot database at path
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		host TEXT NOT NULL,
		operation TEXT NOT NULL,
		target TEXT NOT NULL,
		reference TEXT,
		results JSON,
		taken_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_host ON snapshots(host);
	CREATE INDEX IF NOT EXISTS idx_snapshots_taken_at ON snapshots(taken_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Save records one snapshot and returns its assigned ID
func (s *Store) Save(ctx context.Context, snap Snapshot) (int64, error) {
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (host, operation, target, reference, results, taken_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snap.Host, snap.Operation, snap.Target, snap.Reference, []byte(snap.Results), snap.TakenAt)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read snapshot id: %w", err)
	}
	return id, nil
}

// List returns snapshots newest first, filtered by host when host is
// non-empty
func (s *Store) List(ctx context.Context, host string) ([]Snapshot, error) {
	query := `
		SELECT id, host, operation, target, reference, results, taken_at
		FROM snapshots
	`
	var args []any
	if host != "" {
		query += " WHERE host = ?"
		args = append(args, host)
	}
	query += " ORDER BY taken_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var (
			snap      Snapshot
			reference sql.NullString
			results   []byte
		)
		if err := rows.Scan(&snap.ID, &snap.Host, &snap.Operation, &snap.Target, &reference, &results, &snap.TakenAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if reference.Valid {
			snap.Reference = reference.String
		}
		snap.Results = json.RawMessage(results)
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}
