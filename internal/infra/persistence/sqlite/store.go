// Package sqlite persists finished runs to an embedded SQLite file while
// serving reads from the in-memory repository it hydrates on open.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"valuegen/internal/infra/persistence/memory"
	"valuegen/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.ValueRepository = (*Store)(nil)

// DefaultPath is used when no database file is configured.
const DefaultPath = "valuegen.db"

// Store writes each saved run as a JSON row in the value_runs table.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (creating if needed) the database at path and loads every
// persisted run.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS value_runs (
		run_id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create value_runs table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT run_id, payload FROM value_runs`)
	if err != nil {
		return fmt.Errorf("select value_runs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var snapshots []domain.ValueSnapshot
	for rows.Next() {
		var runID string
		var payload []byte
		if err := rows.Scan(&runID, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		var snap domain.ValueSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return fmt.Errorf("decode run %s: %w", runID, err)
		}
		snap.RunID = runID
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate value_runs: %w", err)
	}
	s.ImportState(snapshots)
	return nil
}

// Save writes snapshot to the database and then to the in-memory cache.
func (s *Store) Save(ctx context.Context, snapshot domain.ValueSnapshot) error {
	if snapshot.RunID == "" {
		return memory.ErrMissingRunID
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", snapshot.RunID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO value_runs(run_id,created_at,payload) VALUES(?,?,?) ON CONFLICT(run_id) DO UPDATE SET created_at=excluded.created_at, payload=excluded.payload`,
		snapshot.RunID, snapshot.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"), data); err != nil {
		return fmt.Errorf("upsert run %s: %w", snapshot.RunID, err)
	}
	return s.Store.Save(ctx, snapshot)
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
