/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package storage defines the key-value backend that lrucache keeps its entries in.
//
// Implementations live in subpackages: memory (transient, in-process), redis (durable, network)
// and sqlite (durable, local file). Durable backends share the text codec from this package,
// so a value written by one of them reads back the same way from the other.
package storage

import (
	"context"
	"errors"
)

// Value is a value kept in a Storage. Supported dynamic types are
// string, signed and unsigned integers, float64/float32, slices and string-keyed maps of those.
type Value = interface{}

// ErrUnavailable is wrapped by errors of durable backends that could not reach their store.
var ErrUnavailable = errors.New("storage unavailable")

// ErrNotOpened is returned by durable backends used before Open or after Close.
var ErrNotOpened = errors.New("storage is not opened")

// Storage is a flat string-keyed key-value store.
type Storage interface {
	// Open prepares the storage for use. For network backends it establishes (and checks) the connection.
	Open(ctx context.Context) error

	// Close releases resources. The storage must not be used afterwards.
	Close() error

	// Get returns the value for key. A missing key is reported with found == false and a nil error.
	Get(ctx context.Context, key string) (value Value, found bool, err error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value Value) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}
