// Package repository declares the storage contract the services depend on.
// Implementations live in subpackages (sqlite, redis, postgres).
package repository

import (
	"context"
	"errors"
)

// ErrNotInteger is returned by Incr when the existing value is not a decimal
// integer.
var ErrNotInteger = errors.New("repository: value is not an integer")

// KeyValueStore is an eventually-consistent string key-value store with
// per-key atomic operations. No operation spans more than one key.
type KeyValueStore interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Put sets key to value, creating it if needed.
	Put(ctx context.Context, key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Incr atomically adds delta to the integer stored at key (absent reads
	// as 0) and returns the new value.
	Incr(ctx context.Context, key string, delta int64) (int64, error)
	// Keys lists every key starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}
