package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/ledger"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/storage"
	"bilancio/internal/storage/file"
	"bilancio/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateStore implements Factory.CreateStore
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (storage.Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	case FileBackend:
		store, err := file.New(config.DataDirectory)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file store: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized file backend", "data_directory", config.DataDirectory)
		return store, nil
	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data" // Default directory
		}
		f.logger.InfoContext(ctx, "Initialized memory backend", "data_directory", dataDir)
		return memory.NewFromFiles(dataDir), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := f.CreateStore(ctx, config)
	if err != nil {
		return nil, err
	}

	logger := applog.New(applog.Config{Handler: f.logger.Handler(), Component: applog.ComponentLedger})
	l, err := ledger.Open(ctx, store,
		ledger.WithRequiredCategory(config.RequireCategory),
		ledger.WithLogger(logger))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	// Initialize AMQP client (optional)
	var publisher services.Publisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			publisher = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	service := services.NewTransactionService(l, publisher).WithLogger(logger)

	if config.SeedDemoData {
		seeded, err := service.SeedDemo(ctx)
		if err != nil {
			service.Close()
			store.Close()
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
		if seeded {
			f.logger.InfoContext(ctx, "Seeded demo transactions")
		}
	}

	f.logger.InfoContext(ctx, "Backend ready",
		"backend", config.Type,
		"transactions", l.Len(),
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Store:   store,
		Ledger:  l,
		Service: service,
		Cleanup: func() error {
			return errors.Join(service.Close(), store.Close())
		},
	}, nil
}
