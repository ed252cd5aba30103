/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package redis provides a durable storage.Storage kept in a Redis server.
//
// Values are stored as plain Redis strings in the text form of storage.EncodeText:
// scalars verbatim, lists and maps as JSON. Numbers are never reparsed as floats on the way back.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/acronis/go-cbrcache/log"
	"github.com/acronis/go-cbrcache/retry"
	"github.com/acronis/go-cbrcache/storage"
)

// Storage is a storage.Storage backed by Redis.
type Storage struct {
	cfg    Config
	logger log.FieldLogger

	mu     sync.RWMutex
	client *goredis.Client
}

var _ storage.Storage = (*Storage)(nil)

// New creates a Storage. No connection is made until Open.
func New(cfg *Config, logger log.FieldLogger) *Storage {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	return &Storage{cfg: *cfg, logger: logger}
}

// Open connects to the server and pings it, retrying with exponential backoff
// for up to cfg.OpenMaxRetries attempts. Server replies (e.g. wrong password) are not retried.
// Commands issued after Open are never retried by the client.
func (s *Storage) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         s.cfg.Addr,
		Username:     s.cfg.Username,
		Password:     s.cfg.Password,
		DB:           s.cfg.DB,
		DialTimeout:  s.cfg.DialTimeout,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		MaxRetries:   -1,
	})

	policy := retry.NewExponentialBackoffPolicy(s.cfg.OpenInitialInterval, s.cfg.OpenMaxRetries)
	notify := retry.LogNotify(s.logger.With(log.String("addr", s.cfg.Addr)), "redis is not reachable yet")
	if err := retry.DoWithRetry(ctx, policy, isRetryable, notify, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}); err != nil {
		_ = client.Close()
		return fmt.Errorf("%w: ping redis at %s: %w", storage.ErrUnavailable, s.cfg.Addr, err)
	}

	s.client = client
	s.logger.Info("redis storage opened", log.String("addr", s.cfg.Addr), log.Int("db", s.cfg.DB))
	return nil
}

// Close closes the connection pool. Closing a Storage that is not opened does nothing.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// Get implements storage.Storage.
func (s *Storage) Get(ctx context.Context, key string) (storage.Value, bool, error) {
	client, err := s.getClient()
	if err != nil {
		return nil, false, err
	}
	text, err := client.Get(ctx, s.makeKey(key)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: get %q: %w", storage.ErrUnavailable, key, err)
	}
	return storage.DecodeText(text), true, nil
}

// Set implements storage.Storage. Keys never expire.
func (s *Storage) Set(ctx context.Context, key string, value storage.Value) error {
	text, err := storage.EncodeText(value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	client, err := s.getClient()
	if err != nil {
		return err
	}
	if err = client.Set(ctx, s.makeKey(key), text, 0).Err(); err != nil {
		return fmt.Errorf("%w: set %q: %w", storage.ErrUnavailable, key, err)
	}
	return nil
}

// Remove implements storage.Storage.
func (s *Storage) Remove(ctx context.Context, key string) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}
	if err = client.Del(ctx, s.makeKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: remove %q: %w", storage.ErrUnavailable, key, err)
	}
	return nil
}

func (s *Storage) getClient() (*goredis.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, storage.ErrNotOpened
	}
	return s.client, nil
}

func (s *Storage) makeKey(key string) string {
	if s.cfg.Namespace == "" {
		return key
	}
	return s.cfg.Namespace + ":" + key
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var replyErr goredis.Error
	return !errors.As(err, &replyErr)
}
