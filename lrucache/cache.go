/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/acronis/go-cbrcache/log"
	"github.com/acronis/go-cbrcache/storage"
)

// DefaultOrderKey is the storage key the access order is saved under when Options.OrderKey is empty.
const DefaultOrderKey = "lrucache:keys"

// Errors returned by Cache.
var (
	ErrNotInitialized = errors.New("cache is not initialized")
	ErrClosed         = errors.New("cache is closed")
	ErrReservedKey    = errors.New("key is reserved for cache metadata")
)

type cacheState int

const (
	stateUninitialized cacheState = iota
	stateInitialized
	stateClosed
)

// Options represents options for the cache.
type Options struct {
	// OrderKey is the storage key for the saved access order. DefaultOrderKey is used if empty.
	OrderKey string

	// MetricsCollector may be nil, in this case metrics are disabled.
	MetricsCollector MetricsCollector

	// Logger may be nil, in this case nothing is logged.
	Logger log.FieldLogger
}

// Cache is an LRU cache whose entries are kept in a storage.Storage.
// The zero value is not usable, create it with New or NewWithOpts.
type Cache struct {
	maxEntries int
	orderKey   string
	storage    storage.Storage

	mu      sync.Mutex
	state   cacheState
	lruList *list.List               // front is the most recently used key
	index   map[string]*list.Element // values are lruList elements holding keys

	metricsCollector MetricsCollector
	logger           log.FieldLogger
}

// New creates a Cache holding up to maxEntries keys in store.
// The cache takes ownership of store: it opens it in Init and closes it in Close.
func New(maxEntries int, store storage.Storage) (*Cache, error) {
	return NewWithOpts(maxEntries, store, Options{})
}

// NewWithOpts is New with options.
func NewWithOpts(maxEntries int, store storage.Storage, opts Options) (*Cache, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("maxEntries must be greater than 0")
	}
	if store == nil {
		return nil, fmt.Errorf("storage must not be nil")
	}
	if opts.OrderKey == "" {
		opts.OrderKey = DefaultOrderKey
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	return &Cache{
		maxEntries:       maxEntries,
		orderKey:         opts.OrderKey,
		storage:          store,
		lruList:          list.New(),
		index:            make(map[string]*list.Element),
		metricsCollector: opts.MetricsCollector,
		logger:           opts.Logger,
	}, nil
}

// Init opens the storage and loads the saved access order (an empty order if nothing was saved).
// Repeated duplicate keys in the saved order are collapsed, and if the saved order holds more keys
// than the cache capacity the least recently used ones are evicted.
// Calling Init on an initialized cache does nothing. A closed cache may be initialized again:
// the storage is reopened and the order saved by Close is loaded back.
func (c *Cache) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateInitialized {
		return nil
	}

	if err := c.storage.Open(ctx); err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	keys, err := c.loadOrder(ctx)
	if err != nil {
		return err
	}

	c.lruList.Init()
	c.index = make(map[string]*list.Element, len(keys))
	for _, key := range keys {
		if key == c.orderKey {
			continue
		}
		c.touch(key)
	}
	c.state = stateInitialized

	if err = c.evictOverflow(ctx); err != nil {
		c.logger.Warn("failed to evict keys over capacity, will retry on next put", log.Error(err))
	}
	c.metricsCollector.SetAmount(len(c.index))
	c.logger.Info("cache initialized", log.Int("keys", len(c.index)), log.Int("capacity", c.maxEntries))
	return nil
}

// Get returns the value for key from the storage.
// A hit makes key the most recently used one. A miss leaves the access order as is,
// except that a tracked key which disappeared from the storage is no longer tracked.
func (c *Cache) Get(ctx context.Context, key string) (storage.Value, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkUsable(key); err != nil {
		return nil, false, err
	}

	value, found, err := c.storage.Get(ctx, key)
	if err != nil {
		c.metricsCollector.IncStorageErrors()
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	if !found {
		c.metricsCollector.IncMisses()
		if elem, tracked := c.index[key]; tracked {
			c.lruList.Remove(elem)
			delete(c.index, key)
			c.metricsCollector.SetAmount(len(c.index))
		}
		return nil, false, nil
	}

	c.metricsCollector.IncHits()
	c.touch(key)
	if err = c.evictOverflow(ctx); err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Put stores value under key (overwriting a previous one) and makes key the most recently used one.
// If the cache grows over its capacity, the least recently used key is evicted from the storage.
// If the storage write fails, the access order is left unchanged.
func (c *Cache) Put(ctx context.Context, key string, value storage.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkUsable(key); err != nil {
		return err
	}

	if err := c.storage.Set(ctx, key, value); err != nil {
		c.metricsCollector.IncStorageErrors()
		return fmt.Errorf("put %q: %w", key, err)
	}
	c.touch(key)
	return c.evictOverflow(ctx)
}

// Checkpoint saves the current access order without closing the cache.
func (c *Cache) Checkpoint(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkState(); err != nil {
		return err
	}
	return c.saveOrder(ctx)
}

// Close saves the access order and closes the storage. The cache cannot be used afterwards.
// The storage is closed even if saving the order fails. Closing a closed cache does nothing.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateClosed {
		return nil
	}
	var saveErr error
	if c.state == stateInitialized {
		saveErr = c.saveOrder(ctx)
	}
	c.state = stateClosed
	if err := c.storage.Close(); err != nil {
		return errors.Join(saveErr, fmt.Errorf("close storage: %w", err))
	}
	return saveErr
}

// Keys returns the tracked keys from the least to the most recently used.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys()
}

// Len returns the number of tracked keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Capacity returns the maximum number of tracked keys.
func (c *Cache) Capacity() int {
	return c.maxEntries
}

func (c *Cache) checkState() error {
	switch c.state {
	case stateUninitialized:
		return ErrNotInitialized
	case stateClosed:
		return ErrClosed
	}
	return nil
}

func (c *Cache) checkUsable(key string) error {
	if err := c.checkState(); err != nil {
		return err
	}
	if key == c.orderKey {
		return fmt.Errorf("%q: %w", key, ErrReservedKey)
	}
	return nil
}

// touch moves key to the front of the list, adding it if it's not tracked yet.
func (c *Cache) touch(key string) {
	if elem, ok := c.index[key]; ok {
		c.lruList.MoveToFront(elem)
		return
	}
	c.index[key] = c.lruList.PushFront(key)
	c.metricsCollector.SetAmount(len(c.index))
}

// evictOverflow removes least recently used keys until the capacity bound holds.
// After a normal Put at most one key is evicted. A key whose removal from the storage fails
// stays tracked, so it is evicted by a later call.
func (c *Cache) evictOverflow(ctx context.Context) error {
	for len(c.index) > c.maxEntries {
		elem := c.lruList.Back()
		key := elem.Value.(string)
		if err := c.storage.Remove(ctx, key); err != nil {
			c.metricsCollector.IncStorageErrors()
			return fmt.Errorf("evict %q: %w", key, err)
		}
		c.lruList.Remove(elem)
		delete(c.index, key)
		c.metricsCollector.AddEvictions(1)
		c.metricsCollector.SetAmount(len(c.index))
		c.logger.Debug("cache entry evicted", log.String("key", key))
	}
	return nil
}

func (c *Cache) keys() []string {
	keys := make([]string, 0, len(c.index))
	for elem := c.lruList.Back(); elem != nil; elem = elem.Prev() {
		keys = append(keys, elem.Value.(string))
	}
	return keys
}

func (c *Cache) loadOrder(ctx context.Context) ([]string, error) {
	value, found, err := c.storage.Get(ctx, c.orderKey)
	if err != nil {
		c.metricsCollector.IncStorageErrors()
		return nil, fmt.Errorf("load key order: %w", err)
	}
	if !found {
		return nil, nil
	}
	keys, ok := storage.AsStrings(value)
	if !ok {
		return nil, fmt.Errorf("load key order: unexpected value of type %T under %q", value, c.orderKey)
	}
	return keys, nil
}

func (c *Cache) saveOrder(ctx context.Context) error {
	if err := c.storage.Set(ctx, c.orderKey, c.keys()); err != nil {
		c.metricsCollector.IncStorageErrors()
		return fmt.Errorf("save key order: %w", err)
	}
	return nil
}
