/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package memory provides a transient in-process storage.Storage.
package memory

import (
	"context"
	"sync"

	"github.com/acronis/go-cbrcache/storage"
)

// Storage keeps values in a map. Values are stored as passed, without encoding.
// None of its methods ever returns an error.
type Storage struct {
	mu     sync.RWMutex
	values map[string]storage.Value
}

var _ storage.Storage = (*Storage)(nil)

// New creates an empty Storage.
func New() *Storage {
	return &Storage{values: make(map[string]storage.Value)}
}

// Open implements storage.Storage.
func (s *Storage) Open(context.Context) error {
	return nil
}

// Close implements storage.Storage. Kept values survive Close, so the storage may be reopened.
func (s *Storage) Close() error {
	return nil
}

// Get implements storage.Storage.
func (s *Storage) Get(_ context.Context, key string) (storage.Value, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set implements storage.Storage.
func (s *Storage) Set(_ context.Context, key string, value storage.Value) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

// Remove implements storage.Storage.
func (s *Storage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of kept keys.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
