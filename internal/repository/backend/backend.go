// Package backend opens the key-value store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sakif/blog-edge/internal/config"
	"github.com/sakif/blog-edge/internal/repository"
	"github.com/sakif/blog-edge/internal/repository/postgres"
	"github.com/sakif/blog-edge/internal/repository/redis"
	"github.com/sakif/blog-edge/internal/repository/sqlite"
)

// Open connects to the configured backend and checks it with a ping. The
// caller owns the returned store and must Close it.
func Open(ctx context.Context, cfg config.Store) (repository.KeyValueStore, error) {
	var (
		store repository.KeyValueStore
		err   error
	)

	switch cfg.Backend {
	case config.BackendSQLite:
		store, err = openSQLite(cfg.SQLitePath)
	case config.BackendRedis:
		store, err = redis.New(redis.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case config.BackendPostgres:
		store, err = postgres.Connect(ctx, cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("backend: unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("backend: opening %s: %w", cfg.Backend, err)
	}

	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("backend: pinging %s: %w", cfg.Backend, err)
	}
	return store, nil
}

// openSQLite creates the database directory if needed (like `mkdir -p`).
func openSQLite(path string) (*sqlite.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	return sqlite.New(path)
}
