package core

import (
	"context"
	"fmt"

	"valuegen/internal/infra/persistence/memory"
	"valuegen/internal/infra/persistence/postgres"
	"valuegen/internal/infra/persistence/sqlite"
	"valuegen/pkg/domain"
)

// StorageDriver identifies a concrete run repository implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// ValueRepository aliases domain.ValueRepository.
type ValueRepository = domain.ValueRepository

// StorageConfig selects and configures a repository driver. Driver
// defaults to sqlite when empty.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenRepository opens the repository described by cfg.
func OpenRepository(ctx context.Context, cfg StorageConfig) (ValueRepository, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return NewSQLiteRepository(cfg.SQLitePath)
	case StoragePostgres:
		return NewPostgresRepository(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// NewSQLiteRepository opens a SQLite-backed repository at path (may be empty for default).
func NewSQLiteRepository(path string) (*sqlite.Store, error) {
	return sqlite.NewStore(path)
}

// NewPostgresRepository opens a Postgres-backed repository from the provided DSN.
func NewPostgresRepository(ctx context.Context, dsn string) (*postgres.Store, error) {
	return postgres.NewStore(ctx, dsn)
}
