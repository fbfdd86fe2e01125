package core

import (
	"context"
	"fmt"
	"io"

	"fieldparty/internal/infra/persistence/memory"
	"fieldparty/internal/infra/persistence/postgres"
	"fieldparty/internal/infra/persistence/sqlite"
	"fieldparty/pkg/domain"
)

// StorageDriver identifies a concrete document store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageOptions selects and configures a backend. Empty Driver means sqlite.
type StorageOptions struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenDocumentStore opens the configured backend. The returned closer releases
// database handles and is never nil.
func OpenDocumentStore(ctx context.Context, opts StorageOptions) (domain.DocumentStore, io.Closer, error) {
	driver := opts.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nopCloser{}, nil
	case StorageSQLite:
		s, err := sqlite.NewStore(opts.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case StoragePostgres:
		s, err := postgres.NewStore(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
