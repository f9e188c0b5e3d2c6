package storage

import (
	"context"
	"fmt"

	"finify/internal/config"
)

// NewFromConfig selects and opens the configured backend.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.DataBackend {
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.SQLiteDBPath)
	case config.BackendPostgres:
		return NewPostgresStore(ctx, cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("unknown data backend: %s", cfg.DataBackend)
	}
}
