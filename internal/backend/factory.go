package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finboard/internal/log"
	"finboard/internal/storage"
	"finboard/internal/storage/postgres"
	"finboard/internal/store/memory"
)

// openPingTimeout bounds the liveness check run right after opening a store.
const openPingTimeout = 5 * time.Second

// DefaultFactory opens the memory, SQLite and Postgres stores.
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend validates config, opens the store and checks it answers a
// ping. A store that opens but fails the ping is closed again.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		res, err = f.openSQLite(config)
	case PostgresBackend:
		res, err = f.openPostgres(ctx, config)
	case MemoryBackend:
		res = f.openMemory(config)
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, openPingTimeout)
	defer cancel()
	if err := res.Store.Ping(pingCtx); err != nil {
		if res.Cleanup != nil {
			err = errors.Join(err, res.Cleanup())
		}
		return nil, fmt.Errorf("%s backend not reachable: %w", config.Type, err)
	}
	return res, nil
}

func (f *DefaultFactory) openSQLite(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{Store: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) openPostgres(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := postgres.Open(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}
	f.logger.Info("Initialized Postgres backend")
	return &BackendResult{Store: repo, Cleanup: repo.Close}, nil
}

// openMemory seeds categories from DataDirectory when present. Nothing is
// written back, so there is no cleanup.
func (f *DefaultFactory) openMemory(config Config) *BackendResult {
	dir := config.DataDirectory
	if dir == "" {
		dir = "data"
	}
	f.logger.Info("Initialized memory backend", "data_directory", dir)
	return &BackendResult{Store: memory.NewFromFiles(dir)}
}
