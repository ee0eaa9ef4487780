// Package backend selects and constructs the account store named by
// configuration.
package backend

import (
	"fmt"

	applog "risparmio/internal/log"
	"risparmio/internal/services"
	"risparmio/internal/storage"
)

// Type names a supported account-store backend.
type Type string

const (
	MemoryBackend Type = "memory"
	SQLiteBackend Type = "sqlite"
)

func (t Type) IsValid() bool {
	return t == MemoryBackend || t == SQLiteBackend
}

// Result carries the constructed store and its cleanup, nil when the
// backend holds no external resources.
type Result struct {
	Store   services.AccountStore
	Cleanup func() error
}

// Config is the slice of application config the factory needs.
type Config struct {
	Type         Type
	SQLiteDBPath string
}

// New constructs the account store for the configured backend.
func New(config Config, logger *applog.Logger) (*Result, error) {
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentStorage})
	}
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite repository: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return &Result{Store: repo, Cleanup: repo.Close}, nil
	default:
		logger.Info("Initialized memory backend")
		return &Result{Store: storage.NewMemoryStore()}, nil
	}
}
