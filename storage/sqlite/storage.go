/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package sqlite provides a durable storage.Storage kept in a local SQLite database.
// Values use the same text encoding as the redis backend (see storage.EncodeText).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/acronis/go-cbrcache/log"
	"github.com/acronis/go-cbrcache/storage"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// Storage is a storage.Storage backed by a single SQLite table.
type Storage struct {
	cfg    Config
	logger log.FieldLogger

	mu sync.RWMutex
	db *sql.DB
}

var _ storage.Storage = (*Storage)(nil)

// dataSourceName builds a "file:" URI for path. The path is percent-encoded,
// so '?', '#' and '%' in file names do not break the URI.
func dataSourceName(path string, busyTimeout time.Duration) string {
	query := url.Values{"_pragma": {
		"busy_timeout(" + strconv.FormatInt(busyTimeout.Milliseconds(), 10) + ")",
		"journal_mode(WAL)",
	}}
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(filepath.Clean(path)),
		OmitHost: true,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// New creates a Storage. The database file is not touched until Open.
func New(cfg *Config, logger log.FieldLogger) *Storage {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	return &Storage{cfg: *cfg, logger: logger}
}

// Open opens the database file and creates the table if needed.
func (s *Storage) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", dataSourceName(s.cfg.Path, s.cfg.BusyTimeout))
	if err != nil {
		return fmt.Errorf("%w: open sqlite db: %w", storage.ErrUnavailable, err)
	}
	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY between our own connections.
	db.SetMaxOpenConns(1)
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: ping sqlite db: %w", storage.ErrUnavailable, err)
	}
	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: create kv table: %w", storage.ErrUnavailable, err)
	}

	s.db = db
	s.logger.Info("sqlite storage opened", log.String("path", s.cfg.Path))
	return nil
}

// Close closes the database. Closing a Storage that is not opened does nothing.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Get implements storage.Storage.
func (s *Storage) Get(ctx context.Context, key string) (storage.Value, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var text string
	err = db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: get %q: %w", storage.ErrUnavailable, key, err)
	}
	return storage.DecodeText(text), true, nil
}

// Set implements storage.Storage.
func (s *Storage) Set(ctx context.Context, key string, value storage.Value) error {
	text, err := storage.EncodeText(value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, text)
	if err != nil {
		return fmt.Errorf("%w: set %q: %w", storage.ErrUnavailable, key, err)
	}
	return nil
}

// Remove implements storage.Storage.
func (s *Storage) Remove(ctx context.Context, key string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if _, err = db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("%w: remove %q: %w", storage.ErrUnavailable, key, err)
	}
	return nil
}

func (s *Storage) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, storage.ErrNotOpened
	}
	return s.db, nil
}
