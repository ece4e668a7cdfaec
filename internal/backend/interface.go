package backend

import (
	"context"
	"slices"

	"bilancio/internal/ledger"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

// CleanupFunc releases the publisher and the store.
type CleanupFunc func() error

// BackendResult holds everything a front end needs: the store, the ledger
// loaded from it and the service wrapping both.
type BackendResult struct {
	Store   storage.Store
	Ledger  *ledger.Ledger
	Service *services.TransactionService
	Cleanup CleanupFunc
}

type Factory interface {
	// CreateStore opens only the snapshot store.
	CreateStore(ctx context.Context, config Config) (storage.Store, error)
	// CreateBackend opens the store, loads the ledger and wires the optional event publisher.
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// File and memory backends
	DataDirectory string

	// SQLite specific
	SQLiteDBPath string

	// Optional event publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Ledger behaviour
	RequireCategory bool
	SeedDemoData    bool
}

// BackendType names a snapshot store implementation.
type BackendType string

const (
	FileBackend   BackendType = "file"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid reports whether bt is one of the known backends.
func (bt BackendType) IsValid() bool {
	return slices.Contains(backendTypes, bt)
}
