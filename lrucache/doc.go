/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package lrucache provides a capacity-bounded cache with LRU eviction on top of a storage.Storage.
//
// Entries live in the storage; the cache itself only tracks the access order of keys.
// That order is saved under a reserved metadata key on Close (and Checkpoint) and loaded
// back on Init, so with a durable storage the cache resumes with the same recency after a restart.
// All operations are serialized, so the capacity bound holds under concurrent use.
package lrucache
