// Package repotest holds the behaviour every repository.KeyValueStore
// implementation must share. Backend test files call Run with a constructor.
package repotest

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/blog-edge/internal/repository"
)

// Run exercises store semantics against a fresh store per subtest.
func Run(t *testing.T, newStore func(t *testing.T) repository.KeyValueStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("get absent", func(t *testing.T) {
		s := newStore(t)
		v, ok, err := s.Get(ctx, "views:missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "like:post:1", "true"))

		v, ok, err := s.Get(ctx, "like:post:1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "true", v)
	})

	t.Run("put overwrites", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "likes:post", "3"))
		require.NoError(t, s.Put(ctx, "likes:post", "2"))

		v, _, err := s.Get(ctx, "likes:post")
		require.NoError(t, err)
		assert.Equal(t, "2", v)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "like:post:1", "true"))
		require.NoError(t, s.Delete(ctx, "like:post:1"))
		require.NoError(t, s.Delete(ctx, "like:post:1"))

		_, ok, err := s.Get(ctx, "like:post:1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("incr from absent", func(t *testing.T) {
		s := newStore(t)
		n, err := s.Incr(ctx, "views:post", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.Incr(ctx, "views:post", 4)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		v, _, err := s.Get(ctx, "views:post")
		require.NoError(t, err)
		assert.Equal(t, "5", v, "counters are stored as decimal strings")
	})

	t.Run("incr continues a put value", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "views:post", "41"))
		n, err := s.Incr(ctx, "views:post", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(42), n)
	})

	t.Run("incr on non-integer", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "like:post:1", "true"))
		_, err := s.Incr(ctx, "like:post:1", 1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, repository.ErrNotInteger))
	})

	t.Run("incr is atomic under concurrency", func(t *testing.T) {
		s := newStore(t)
		const workers = 50

		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Incr(ctx, "views:hot", 1); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		v, _, err := s.Get(ctx, "views:hot")
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(workers), v)
	})

	t.Run("keys by prefix", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"like:a:1", "like:a:2", "like:b:1", "likes:a", "views:a"} {
			require.NoError(t, s.Put(ctx, k, "x"))
		}

		keys, err := s.Keys(ctx, "like:a:")
		require.NoError(t, err)
		sort.Strings(keys)
		assert.Equal(t, []string{"like:a:1", "like:a:2"}, keys)

		keys, err = s.Keys(ctx, "like:")
		require.NoError(t, err)
		assert.Len(t, keys, 3)

		keys, err = s.Keys(ctx, "nothing:")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("keys treats glob characters literally", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "like:a*:1", "true"))
		require.NoError(t, s.Put(ctx, "like:ab:1", "true"))
		require.NoError(t, s.Put(ctx, "like:a_:1", "true"))
		require.NoError(t, s.Put(ctx, "like:a%:1", "true"))

		keys, err := s.Keys(ctx, "like:a*:")
		require.NoError(t, err)
		assert.Equal(t, []string{"like:a*:1"}, keys)

		keys, err = s.Keys(ctx, "like:a_:")
		require.NoError(t, err)
		assert.Equal(t, []string{"like:a_:1"}, keys)
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(ctx))
	})
}
