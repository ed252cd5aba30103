/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-cbrcache/config"
	"github.com/acronis/go-cbrcache/log/logtest"
	"github.com/acronis/go-cbrcache/storage"
	"github.com/acronis/go-cbrcache/storage/memory"
	"github.com/acronis/go-cbrcache/storage/redis"
	"github.com/acronis/go-cbrcache/storage/sqlite"
)

func newInitializedCache(t *testing.T, maxEntries int, store storage.Storage) *Cache {
	t.Helper()
	cache, err := New(maxEntries, store)
	require.NoError(t, err)
	require.NoError(t, cache.Init(context.Background()))
	return cache
}

func requireHit(t *testing.T, cache *Cache, key string, want storage.Value) {
	t.Helper()
	got, found, err := cache.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, found, "key %q should be in cache", key)
	require.Equal(t, want, got)
}

func requireMiss(t *testing.T, cache *Cache, key string) {
	t.Helper()
	_, found, err := cache.Get(context.Background(), key)
	require.NoError(t, err)
	require.False(t, found, "key %q should not be in cache", key)
}

func TestNew(t *testing.T) {
	_, err := New(0, memory.New())
	require.Error(t, err)

	_, err = New(1, nil)
	require.Error(t, err)
}

func TestCache_Scenario(t *testing.T) {
	ctx := context.Background()
	cache := newInitializedCache(t, 2, memory.New())

	require.NoError(t, cache.Put(ctx, "a", 1))
	require.NoError(t, cache.Put(ctx, "b", 2))
	requireHit(t, cache, "a", 1)
	require.NoError(t, cache.Put(ctx, "c", 3))

	requireMiss(t, cache, "b")
	requireHit(t, cache, "a", 1)
	requireHit(t, cache, "c", 3)
	require.Equal(t, []string{"a", "c"}, cache.Keys())
}

func TestCache_PutWithinCapacity(t *testing.T) {
	ctx := context.Background()
	const capacity = 5
	cache := newInitializedCache(t, capacity, memory.New())

	for i := 0; i < capacity; i++ {
		require.NoError(t, cache.Put(ctx, fmt.Sprintf("k%d", i), fmt.Sprintf("v%d", i)))
	}
	require.NoError(t, cache.Put(ctx, "k2", "v2-updated"))

	for i := 0; i < capacity; i++ {
		want := fmt.Sprintf("v%d", i)
		if i == 2 {
			want = "v2-updated"
		}
		requireHit(t, cache, fmt.Sprintf("k%d", i), want)
	}
	require.Equal(t, capacity, cache.Len())
}

func TestCache_EvictsFirstPutKey(t *testing.T) {
	ctx := context.Background()
	const capacity = 3
	store := memory.New()
	cache := newInitializedCache(t, capacity, store)

	for i := 0; i <= capacity; i++ {
		require.NoError(t, cache.Put(ctx, fmt.Sprintf("k%d", i), i))
	}

	requireMiss(t, cache, "k0")
	for i := 1; i <= capacity; i++ {
		requireHit(t, cache, fmt.Sprintf("k%d", i), i)
	}
	require.Equal(t, capacity, store.Len())
}

func TestCache_GetRefreshesRecency(t *testing.T) {
	ctx := context.Background()
	const capacity = 3
	cache := newInitializedCache(t, capacity, memory.New())

	for i := 0; i < capacity; i++ {
		require.NoError(t, cache.Put(ctx, fmt.Sprintf("k%d", i), i))
	}
	requireHit(t, cache, "k0", 0)
	require.NoError(t, cache.Put(ctx, "k3", 3))

	requireMiss(t, cache, "k1")
	requireHit(t, cache, "k0", 0)
	requireHit(t, cache, "k2", 2)
	requireHit(t, cache, "k3", 3)
}

func TestCache_MissDoesNotChangeOrder(t *testing.T) {
	ctx := context.Background()
	cache := newInitializedCache(t, 2, memory.New())

	require.NoError(t, cache.Put(ctx, "a", 1))
	require.NoError(t, cache.Put(ctx, "b", 2))
	requireMiss(t, cache, "zzz")
	require.Equal(t, []string{"a", "b"}, cache.Keys())
}

func TestCache_PutExistingKeyRelocates(t *testing.T) {
	ctx := context.Background()
	cache := newInitializedCache(t, 3, memory.New())

	require.NoError(t, cache.Put(ctx, "a", 1))
	require.NoError(t, cache.Put(ctx, "b", 2))
	require.NoError(t, cache.Put(ctx, "a", 10))
	require.Equal(t, []string{"b", "a"}, cache.Keys())

	require.NoError(t, cache.Put(ctx, "c", 3))
	require.NoError(t, cache.Put(ctx, "d", 4))
	require.Equal(t, []string{"a", "c", "d"}, cache.Keys())
	requireMiss(t, cache, "b")
	requireHit(t, cache, "a", 10)
}

func TestCache_ExternallyRemovedKey(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	cache := newInitializedCache(t, 3, store)

	require.NoError(t, cache.Put(ctx, "a", 1))
	require.NoError(t, cache.Put(ctx, "b", 2))
	require.NoError(t, store.Remove(ctx, "a"))

	requireMiss(t, cache, "a")
	require.Equal(t, []string{"b"}, cache.Keys())
}

func TestCache_AdoptsUntrackedStoredKey(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	cache := newInitializedCache(t, 2, store)

	require.NoError(t, cache.Put(ctx, "a", 1))
	require.NoError(t, cache.Put(ctx, "b", 2))
	require.NoError(t, store.Set(ctx, "x", "external"))

	requireHit(t, cache, "x", "external")
	require.Equal(t, []string{"b", "x"}, cache.Keys())
	_, found, _ := store.Get(ctx, "a")
	require.False(t, found)
}

func TestCache_States(t *testing.T) {
	ctx := context.Background()
	cache, err := New(2, memory.New())
	require.NoError(t, err)

	_, _, err = cache.Get(ctx, "a")
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, cache.Put(ctx, "a", 1), ErrNotInitialized)
	require.ErrorIs(t, cache.Checkpoint(ctx), ErrNotInitialized)

	require.NoError(t, cache.Init(ctx))
	require.NoError(t, cache.Init(ctx))
	require.NoError(t, cache.Put(ctx, "a", 1))

	require.ErrorIs(t, cache.Put(ctx, DefaultOrderKey, 1), ErrReservedKey)
	_, _, err = cache.Get(ctx, DefaultOrderKey)
	require.ErrorIs(t, err, ErrReservedKey)

	require.NoError(t, cache.Close(ctx))
	require.NoError(t, cache.Close(ctx))

	_, _, err = cache.Get(ctx, "a")
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, cache.Put(ctx, "a", 1), ErrClosed)
}

func TestCache_ReinitAfterClose(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	cache, err := New(2, store)
	require.NoError(t, err)
	require.NoError(t, cache.Init(ctx))
	require.NoError(t, cache.Put(ctx, "a", 1))
	require.NoError(t, cache.Put(ctx, "b", 2))
	_, _, err = cache.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, cache.Close(ctx))

	require.NoError(t, cache.Init(ctx))
	require.Equal(t, []string{"b", "a"}, cache.Keys())
	value, found, err := cache.Get(ctx, "b")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 2, value)

	require.NoError(t, cache.Put(ctx, "c", 3))
	require.Equal(t, []string{"b", "c"}, cache.Keys())
	_, found, err = store.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, cache.Close(ctx))
}

func TestCache_CloseInitRoundTrip(t *testing.T) {
	ctx := context.Background()

	durableStorages := map[string]func(t *testing.T) func() storage.Storage{
		"memory": func(t *testing.T) func() storage.Storage {
			store := memory.New()
			return func() storage.Storage { return store }
		},
		"redis": func(t *testing.T) func() storage.Storage {
			mr := miniredis.RunT(t)
			return func() storage.Storage {
				cfg := redis.NewDefaultConfig()
				cfg.Addr = mr.Addr()
				return redis.New(cfg, logtest.NewLogger())
			}
		},
		"sqlite": func(t *testing.T) func() storage.Storage {
			path := filepath.Join(t.TempDir(), "cache.db")
			return func() storage.Storage {
				cfg := sqlite.NewDefaultConfig()
				cfg.Path = path
				return sqlite.New(cfg, logtest.NewLogger())
			}
		},
	}

	for name, makeFactory := range durableStorages {
		t.Run(name, func(t *testing.T) {
			newStorage := makeFactory(t)

			cache := newInitializedCache(t, 3, newStorage())
			require.NoError(t, cache.Put(ctx, "rate:USD:2010-01-01", "30.1851"))
			require.NoError(t, cache.Put(ctx, "currency_codes", []string{"USD", "EUR"}))
			require.NoError(t, cache.Put(ctx, "rate:EUR:2010-01-01", "43.4605"))
			requireHit(t, cache, "rate:USD:2010-01-01", "30.1851")
			wantKeys := []string{"currency_codes", "rate:EUR:2010-01-01", "rate:USD:2010-01-01"}
			require.Equal(t, wantKeys, cache.Keys())
			require.NoError(t, cache.Close(ctx))

			restored := newInitializedCache(t, 3, newStorage())
			defer func() { require.NoError(t, restored.Close(ctx)) }()
			require.Equal(t, wantKeys, restored.Keys())

			// The oldest restored key must be the first to go.
			require.NoError(t, restored.Put(ctx, "rate:AUD:2010-01-01", "27.1304"))
			requireMiss(t, restored, "currency_codes")
			requireHit(t, restored, "rate:USD:2010-01-01", "30.1851")
		})
	}
}

func TestCache_InitNormalizesSavedOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	for _, key := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.Set(ctx, key, key))
	}
	require.NoError(t, store.Set(ctx, DefaultOrderKey, []string{"a", "b", "a", "c", "d"}))

	cache := newInitializedCache(t, 2, store)
	require.Equal(t, []string{"c", "d"}, cache.Keys())
	for _, key := range []string{"a", "b"} {
		_, found, _ := store.Get(ctx, key)
		require.False(t, found)
	}
}

func TestCache_InitWithMalformedOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Set(ctx, DefaultOrderKey, 42))

	cache, err := New(2, store)
	require.NoError(t, err)
	require.ErrorContains(t, cache.Init(ctx), "load key order")
}

func TestCache_Checkpoint(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	cache, err := NewWithOpts(2, store, Options{OrderKey: "meta:order"})
	require.NoError(t, err)
	require.NoError(t, cache.Init(ctx))

	require.NoError(t, cache.Put(ctx, "a", 1))
	require.NoError(t, cache.Put(ctx, "b", 2))
	require.NoError(t, cache.Checkpoint(ctx))

	saved, found, err := store.Get(ctx, "meta:order")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []string{"a", "b"}, saved)

	require.ErrorIs(t, cache.Put(ctx, "meta:order", 1), ErrReservedKey)
	require.NoError(t, cache.Put(ctx, DefaultOrderKey, "an ordinary key now"))
}

type failingStorage struct {
	*memory.Storage
	openErr   error
	getErr    error
	setErr    error
	removeErr error
	closeErr  error
}

func (s *failingStorage) Open(ctx context.Context) error {
	if s.openErr != nil {
		return s.openErr
	}
	return s.Storage.Open(ctx)
}

func (s *failingStorage) Get(ctx context.Context, key string) (storage.Value, bool, error) {
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	return s.Storage.Get(ctx, key)
}

func (s *failingStorage) Set(ctx context.Context, key string, value storage.Value) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.Storage.Set(ctx, key, value)
}

func (s *failingStorage) Remove(ctx context.Context, key string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	return s.Storage.Remove(ctx, key)
}

func (s *failingStorage) Close() error {
	if s.closeErr != nil {
		return s.closeErr
	}
	return s.Storage.Close()
}

func TestCache_StorageFailures(t *testing.T) {
	ctx := context.Background()
	errDown := fmt.Errorf("%w: connection refused", storage.ErrUnavailable)

	t.Run("open", func(t *testing.T) {
		cache, err := New(2, &failingStorage{Storage: memory.New(), openErr: errDown})
		require.NoError(t, err)
		require.ErrorIs(t, cache.Init(ctx), storage.ErrUnavailable)
		require.ErrorIs(t, cache.Put(ctx, "a", 1), ErrNotInitialized)
	})

	t.Run("get", func(t *testing.T) {
		store := &failingStorage{Storage: memory.New()}
		cache := newInitializedCache(t, 2, store)
		require.NoError(t, cache.Put(ctx, "a", 1))
		store.getErr = errDown
		_, found, err := cache.Get(ctx, "a")
		require.ErrorIs(t, err, storage.ErrUnavailable)
		require.False(t, found)
		require.Equal(t, []string{"a"}, cache.Keys())
	})

	t.Run("set", func(t *testing.T) {
		store := &failingStorage{Storage: memory.New()}
		cache := newInitializedCache(t, 2, store)
		require.NoError(t, cache.Put(ctx, "a", 1))
		store.setErr = errDown
		require.ErrorIs(t, cache.Put(ctx, "b", 2), storage.ErrUnavailable)
		require.Equal(t, []string{"a"}, cache.Keys())
	})

	t.Run("remove on eviction", func(t *testing.T) {
		store := &failingStorage{Storage: memory.New()}
		cache := newInitializedCache(t, 1, store)
		require.NoError(t, cache.Put(ctx, "a", 1))

		store.removeErr = errDown
		require.ErrorIs(t, cache.Put(ctx, "b", 2), storage.ErrUnavailable)
		require.Equal(t, []string{"a", "b"}, cache.Keys())

		store.removeErr = nil
		require.NoError(t, cache.Put(ctx, "c", 3))
		require.Equal(t, []string{"c"}, cache.Keys())
		require.Equal(t, 1, store.Len())
	})

	t.Run("close saves order even if storage close fails", func(t *testing.T) {
		store := &failingStorage{Storage: memory.New()}
		cache := newInitializedCache(t, 2, store)
		require.NoError(t, cache.Put(ctx, "a", 1))
		store.closeErr = errors.New("close failed")
		require.ErrorContains(t, cache.Close(ctx), "close failed")
		saved, found, _ := store.Storage.Get(ctx, DefaultOrderKey)
		require.True(t, found)
		require.Equal(t, []string{"a"}, saved)
	})

	t.Run("close when order cannot be saved", func(t *testing.T) {
		store := &failingStorage{Storage: memory.New()}
		cache := newInitializedCache(t, 2, store)
		store.setErr = errDown
		require.ErrorIs(t, cache.Close(ctx), storage.ErrUnavailable)
		require.ErrorIs(t, cache.Put(ctx, "a", 1), ErrClosed)
	})
}

func TestCache_Concurrency(t *testing.T) {
	ctx := context.Background()
	const capacity = 10
	store := memory.New()
	cache := newInitializedCache(t, capacity, store)

	var wg sync.WaitGroup
	for g := 0; g < 20; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				key := fmt.Sprintf("k%d", (g*50+i)%37)
				if i%3 == 0 {
					_, _, _ = cache.Get(ctx, key)
					continue
				}
				_ = cache.Put(ctx, key, i)
			}
		}(g)
	}
	wg.Wait()

	keys := cache.Keys()
	require.LessOrEqual(t, len(keys), capacity)
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		require.False(t, seen[key], "duplicate key %q in order", key)
		seen[key] = true
	}
	require.Equal(t, len(keys), store.Len())
}

func TestCache_Metrics(t *testing.T) {
	ctx := context.Background()
	metrics := NewPrometheusMetrics()
	logRecorder := logtest.NewRecorder()
	cache, err := NewWithOpts(2, memory.New(), Options{MetricsCollector: metrics, Logger: logRecorder})
	require.NoError(t, err)
	require.NoError(t, cache.Init(ctx))

	require.NoError(t, cache.Put(ctx, "a", 1))
	require.NoError(t, cache.Put(ctx, "b", 2))
	require.NoError(t, cache.Put(ctx, "c", 3))
	requireHit(t, cache, "c", 3)
	requireMiss(t, cache, "a")
	requireMiss(t, cache, "zzz")

	require.Equal(t, 2.0, testutil.ToFloat64(metrics.EntriesAmount))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.HitsTotal))
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.MissesTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.EvictionsTotal))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.StorageErrorsTotal))

	entry, found := logRecorder.FindEntry("cache entry evicted")
	require.True(t, found)
	key, _ := entry.FindField("key")
	require.Equal(t, "a", string(key.Bytes))
}

func TestConfig(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString(`{}`), config.DataTypeJSON, cfg))
	require.Equal(t, &Config{MaxEntries: DefaultMaxEntries, OrderKey: DefaultOrderKey}, cfg)

	err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString(`{"cache":{"maxEntries":0}}`), config.DataTypeJSON, &Config{})
	require.ErrorContains(t, err, "cache.maxEntries: should be > 0")
}

func TestCache_RedisOutage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := redis.NewDefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.ReadTimeout = 200 * time.Millisecond
	cache := newInitializedCache(t, 2, redis.New(cfg, nil))
	require.NoError(t, cache.Put(ctx, "a", "1.5"))

	mr.Close()
	_, _, err := cache.Get(ctx, "a")
	require.ErrorIs(t, err, storage.ErrUnavailable)
	require.ErrorIs(t, cache.Put(ctx, "b", "2"), storage.ErrUnavailable)
	require.Equal(t, []string{"a"}, cache.Keys())
}
