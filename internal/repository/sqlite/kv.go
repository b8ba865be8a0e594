package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/blog-edge/internal/repository"
)

// compile-time check that *DB implements repository.KeyValueStore
var _ repository.KeyValueStore = (*DB)(nil)

// Get returns the value stored under key.
func (db *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE name = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: getting %q: %w", key, err)
	}
	return value, true, nil
}

// Put upserts key.
func (db *DB) Put(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO kv (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("sqlite: putting %q: %w", key, err)
	}
	return nil
}

// Delete removes key; an absent key is a no-op.
func (db *DB) Delete(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM kv WHERE name = ?`, key); err != nil {
		return fmt.Errorf("sqlite: deleting %q: %w", key, err)
	}
	return nil
}

// Incr adds delta in a single upsert. The DO UPDATE only fires when the
// stored value is a canonical integer; otherwise RETURNING yields no row.
func (db *DB) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	var value string
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO kv (name, value) VALUES (?1, CAST(?2 AS TEXT))
		 ON CONFLICT(name) DO UPDATE
		   SET value = CAST(CAST(kv.value AS INTEGER) + ?2 AS TEXT)
		   WHERE CAST(CAST(kv.value AS INTEGER) AS TEXT) = kv.value
		 RETURNING value`,
		key, delta,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("sqlite: incrementing %q: %w", key, repository.ErrNotInteger)
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: incrementing %q: %w", key, err)
	}

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("sqlite: incrementing %q: %w", key, repository.ErrNotInteger)
	}
	return n, nil
}

// Keys lists keys with the given prefix.
func (db *DB) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT name FROM kv WHERE substr(name, 1, length(?1)) = ?1`, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing prefix %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("sqlite: scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating keys: %w", err)
	}
	return keys, nil
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}
