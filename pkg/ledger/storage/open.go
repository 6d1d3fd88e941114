package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"blackroad-os/carpool/pkg/config"
	"blackroad-os/carpool/pkg/ledger"
)

// ErrClosed is returned by a store after Close.
var ErrClosed = errors.New("store is closed")

// Open builds the store selected by cfg.Backend.
func Open(cfg *config.LedgerConfig) (ledger.Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, ledger.NewStorageError("sqlite", "open", err)
			}
		}
		return NewSQLiteStore(&SQLiteConfig{
			Path:         cfg.SQLite.Path,
			Driver:       cfg.SQLite.Driver,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
		})
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}
