// Package postgres implements repository.KeyValueStore on a PostgreSQL table
// through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/blog-edge/internal/repository"
)

// compile-time check that *Store implements repository.KeyValueStore
var _ repository.KeyValueStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Store is a PostgreSQL-backed key-value store.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool for databaseURL, checks it and creates the kv table.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv WHERE name = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres: getting %q: %w", key, err)
	}
	return value, true, nil
}

// Put upserts key.
func (s *Store) Put(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv (name, value) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("postgres: putting %q: %w", key, err)
	}
	return nil
}

// Delete removes key; an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv WHERE name = $1`, key); err != nil {
		return fmt.Errorf("postgres: deleting %q: %w", key, err)
	}
	return nil
}

// Incr adds delta in one statement. The row lock taken by ON CONFLICT
// serialises concurrent increments; a non-integer value skips the update and
// RETURNING yields no row.
func (s *Store) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO kv (name, value) VALUES ($1, $2::bigint::text)
		 ON CONFLICT (name) DO UPDATE
		   SET value = (kv.value::bigint + $2::bigint)::text
		   WHERE kv.value ~ '^-?[0-9]+$'
		 RETURNING value`,
		key, delta,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("postgres: incrementing %q: %w", key, repository.ErrNotInteger)
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: incrementing %q: %w", key, err)
	}

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("postgres: incrementing %q: %w", key, repository.ErrNotInteger)
	}
	return n, nil
}

// Keys lists keys with the given prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM kv WHERE starts_with(name, $1::text)`, prefix)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing prefix %q: %w", prefix, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: listing prefix %q: %w", prefix, err)
	}
	return keys, nil
}

// Ping checks a pooled connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
