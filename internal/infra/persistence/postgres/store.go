// Package postgres persists finished runs to PostgreSQL while serving reads
// from the in-memory repository it hydrates on open.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"valuegen/internal/infra/persistence/memory"
	"valuegen/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.ValueRepository = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "postgres://localhost/valuegen?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store writes each saved run as a JSONB row in the value_runs table.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed repository using dsn (falls back to DefaultDSN),
// ensures the value_runs table exists and hydrates the cache from it.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureRunsTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	snapshots, err := loadRuns(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore()
	mem.ImportState(snapshots)
	return &Store{Store: mem, db: db}, nil
}

func ensureRunsTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS value_runs (
		run_id TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure value_runs table: %w", err)
	}
	return nil
}

func loadRuns(ctx context.Context, db *sql.DB) ([]domain.ValueSnapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT run_id, payload FROM value_runs`)
	if err != nil {
		return nil, fmt.Errorf("select value_runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.ValueSnapshot
	for rows.Next() {
		var runID string
		var payload []byte
		if err := rows.Scan(&runID, &payload); err != nil {
			return nil, fmt.Errorf("scan value_runs: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		var snap domain.ValueSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return nil, fmt.Errorf("decode run %s: %w", runID, err)
		}
		snap.RunID = runID
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate value_runs: %w", err)
	}
	return out, nil
}

// Save upserts snapshot and then records it in the in-memory cache.
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
		`INSERT INTO value_runs(run_id,created_at,payload) VALUES($1,$2,$3) ON CONFLICT(run_id) DO UPDATE SET created_at=EXCLUDED.created_at, payload=EXCLUDED.payload`,
		snapshot.RunID, snapshot.CreatedAt.UTC(), data); err != nil {
		return fmt.Errorf("upsert run %s: %w", snapshot.RunID, err)
	}
	return s.Store.Save(ctx, snapshot)
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
