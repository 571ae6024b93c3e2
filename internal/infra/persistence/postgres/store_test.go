package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"valuegen/internal/infra/persistence/memory"
	pgtest "valuegen/internal/infra/persistence/postgres/testutil"
	"valuegen/pkg/domain"
)

func openStub(t *testing.T) (*sql.DB, *pgtest.StubConn) {
	t.Helper()
	db, conn := pgtest.NewStubDB()
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != defaultDriver {
			t.Fatalf("unexpected driver %s", driverName)
		}
		if dsn != DefaultDSN {
			t.Fatalf("expected default dsn, got %s", dsn)
		}
		return db, nil
	})
	t.Cleanup(restore)
	return db, conn
}

func TestNewStoreCreatesTableAndPersists(t *testing.T) {
	ctx := context.Background()
	_, conn := openStub(t)

	store, err := NewStore(ctx, "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if len(conn.Execs) == 0 || !strings.Contains(conn.Execs[0], "CREATE TABLE IF NOT EXISTS value_runs") {
		t.Fatalf("expected table ddl, got %v", conn.Execs)
	}
	snap := domain.ValueSnapshot{RunID: "r1", CreatedAt: time.Now().UTC(), Values: map[string]domain.Value{"m:a": 4}}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap.Values["m:a"] = 5
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("resave: %v", err)
	}
	if rows := conn.Tables["value_runs"]; len(rows) != 1 {
		t.Fatalf("expected upsert to keep one row, got %d", len(rows))
	}
	got, err := store.Get(ctx, "r1")
	if err != nil || got.Values["m:a"] != 5 {
		t.Fatalf("unexpected cached run %+v (%v)", got, err)
	}
}

func TestNewStoreHydratesExistingRuns(t *testing.T) {
	ctx := context.Background()
	_, conn := openStub(t)
	conn.Tables["value_runs"] = []map[string]any{
		{"run_id": "old", "payload": []byte(`{"created_at":"2024-01-01T00:00:00Z","values":{"m:a":1}}`)},
		{"run_id": "new", "payload": []byte(`{"created_at":"2024-02-01T00:00:00Z","values":{"m:a":2},"unresolved":["m:b"]}`)},
		{"run_id": "empty", "payload": []byte{}},
	}

	store, err := NewStore(ctx, "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.RunID != "new" || latest.Values["m:a"] != 2 || len(latest.Unresolved) != 1 {
		t.Fatalf("unexpected latest %+v", latest)
	}
	runs, _ := store.List(ctx)
	if len(runs) != 2 {
		t.Fatalf("expected empty payload rows to be skipped, got %+v", runs)
	}
}

func TestNewStoreErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("open", func(t *testing.T) {
		restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("boom") })
		defer restore()
		if _, err := NewStore(ctx, "postgres://x"); err == nil || !strings.Contains(err.Error(), "open postgres") {
			t.Fatalf("expected open error, got %v", err)
		}
	})
	t.Run("ping", func(t *testing.T) {
		_, conn := openStub(t)
		conn.FailPing = true
		if _, err := NewStore(ctx, ""); err == nil || !strings.Contains(err.Error(), "ping postgres") {
			t.Fatalf("expected ping error, got %v", err)
		}
	})
	t.Run("ddl", func(t *testing.T) {
		_, conn := openStub(t)
		conn.FailExec = true
		if _, err := NewStore(ctx, ""); err == nil || !strings.Contains(err.Error(), "ensure value_runs table") {
			t.Fatalf("expected ddl error, got %v", err)
		}
	})
	t.Run("select", func(t *testing.T) {
		_, conn := openStub(t)
		conn.FailTables = map[string]bool{"value_runs": true}
		if _, err := NewStore(ctx, ""); err == nil || !strings.Contains(err.Error(), "select value_runs") {
			t.Fatalf("expected select error, got %v", err)
		}
	})
	t.Run("decode", func(t *testing.T) {
		_, conn := openStub(t)
		conn.Tables["value_runs"] = []map[string]any{{"run_id": "bad", "payload": []byte("{")}}
		if _, err := NewStore(ctx, ""); err == nil || !strings.Contains(err.Error(), "decode run bad") {
			t.Fatalf("expected decode error, got %v", err)
		}
	})
}

func TestSaveErrors(t *testing.T) {
	ctx := context.Background()
	_, conn := openStub(t)
	store, err := NewStore(ctx, "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Save(ctx, domain.ValueSnapshot{}); !errors.Is(err, memory.ErrMissingRunID) {
		t.Fatalf("expected ErrMissingRunID, got %v", err)
	}
	conn.FailTables = map[string]bool{"value_runs": true}
	if err := store.Save(ctx, domain.ValueSnapshot{RunID: "r"}); err == nil {
		t.Fatalf("expected upsert failure")
	}
	if _, err := store.Get(ctx, "r"); err == nil {
		t.Fatalf("failed save must not reach the cache")
	}
}
