package database

import (
	"context"
	"fmt"
	"path/filepath"

	"versemate-sync/internal/config"
	"versemate-sync/internal/database/migrations"
	"versemate-sync/internal/sync"
)

// NewStoreFromConfig creates a Store implementation based on the database
// config type.
func NewStoreFromConfig(cfg config.DatabaseConfig) (sync.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "versemate.db"))
	case "memory":
		db, err := OpenConnection(":memory:")
		if err != nil {
			return nil, err
		}
		if err := migrations.MigrateUp(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		s := NewSQLiteStoreFromDB(db, ":memory:")
		if err := s.RecoverInstalling(context.Background()); err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
