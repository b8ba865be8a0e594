// Package redis implements repository.KeyValueStore on Redis through rueidis.
//
// Values are plain strings; counters use INCRBY so the increment is atomic on
// the server. Keys are listed with SCAN, never KEYS.
package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"github.com/sakif/blog-edge/internal/repository"
)

// compile-time check that *Store implements repository.KeyValueStore
var _ repository.KeyValueStore = (*Store)(nil)

// scanCount is the COUNT hint for each SCAN page.
const scanCount = 200

// Options configures the connection.
type Options struct {
	Addr     string // host:port
	Username string
	Password string
	DB       int
}

// Store is a Redis-backed key-value store.
type Store struct {
	client rueidis.Client
}

// New dials Redis and returns a Store that owns the client.
func New(opts Options) (*Store, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{opts.Addr},
		Username:     opts.Username,
		Password:     opts.Password,
		SelectDB:     opts.DB,
		ClientName:   "blog-edge",
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: connecting to %s: %w", opts.Addr, err)
	}
	return &Store{client: client}, nil
}

// NewFromClient wraps an existing client. The Store takes ownership and
// closes it on Close.
func NewFromClient(client rueidis.Client) *Store {
	return &Store{client: client}
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if rueidis.IsRedisNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis: getting %q: %w", key, err)
	}
	return v, true, nil
}

// Put sets key with no expiry.
func (s *Store) Put(ctx context.Context, key, value string) error {
	if err := s.client.Do(ctx, s.client.B().Set().Key(key).Value(value).Build()).Error(); err != nil {
		return fmt.Errorf("redis: putting %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("redis: deleting %q: %w", key, err)
	}
	return nil
}

// Incr runs INCRBY.
func (s *Store) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := s.client.Do(ctx, s.client.B().Incrby().Key(key).Increment(delta).Build()).AsInt64()
	if err != nil {
		if isNotInteger(err) {
			return 0, fmt.Errorf("redis: incrementing %q: %w", key, repository.ErrNotInteger)
		}
		return 0, fmt.Errorf("redis: incrementing %q: %w", key, err)
	}
	return n, nil
}

// isNotInteger reports whether the server rejected INCRBY because the stored
// value is not an integer. Transport errors never qualify.
func isNotInteger(err error) bool {
	ret, ok := rueidis.IsRedisErr(err)
	return ok && strings.Contains(ret.Error(), "not an integer")
}

// Keys walks SCAN MATCH <prefix>* until the cursor returns to 0.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeGlob(prefix) + "*"

	seen := make(map[string]struct{})
	var keys []string
	var cursor uint64
	for {
		entry, err := s.client.Do(ctx,
			s.client.B().Scan().Cursor(cursor).Match(pattern).Count(scanCount).Build(),
		).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("redis: scanning %q: %w", pattern, err)
		}
		// SCAN may return a key more than once.
		for _, k := range entry.Elements {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return keys, nil
		}
	}
}

// Ping sends PING.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}

// escapeGlob backslash-escapes the characters SCAN MATCH treats specially.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
