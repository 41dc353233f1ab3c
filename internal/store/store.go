// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

// Package store provides a TTL-capable key-value store shared by the product
// cache and the conversation session manager.
//
// The production implementation is backed by BadgerDB. Entries are written
// with a TTL and expire server-side; there is no explicit delete path in
// normal operation. A memory implementation exists for tests and for
// fault-injection in the cache and session packages.
package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for store operations.
var (
	// ErrKeyNotFound indicates the key does not exist or has expired.
	ErrKeyNotFound = errors.New("store: key not found")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store: closed")
)

// KV is the key-value contract consumed by the cache and session layers.
// All operations respect context cancellation; callers bound them with a
// short deadline and degrade on expiry rather than block.
type KV interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL. A zero TTL stores
	// the entry without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying resources.
	Close() error
}
