package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/oakmere/shoebox/internal/config"
	"github.com/oakmere/shoebox/internal/service"
	"github.com/oakmere/shoebox/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/shoebox/shoebox.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}
