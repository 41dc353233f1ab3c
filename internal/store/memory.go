// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory KV implementation with lazy TTL expiry.
// It exists for tests and fault injection; production uses BadgerStore.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	closed  bool

	// FailOp, when set, is consulted before every operation. Returning a
	// non-nil error makes the operation fail with it. Used by cache and
	// session tests to exercise degraded paths.
	FailOp func(op, key string) error
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// Get returns the value for key, or ErrKeyNotFound.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.injectedError("get", key); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		return nil, ErrKeyNotFound
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set stores value under key with the given TTL.
func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.injectedError("set", key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	entry := memoryEntry{value: stored}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

// Delete removes key. Absent keys are not an error.
func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.injectedError("delete", key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	delete(m.entries, key)
	return nil
}

// Close marks the store closed. Further operations return ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len returns the number of live (non-expired) entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	count := 0
	for _, entry := range m.entries {
		if entry.expiresAt.IsZero() || now.Before(entry.expiresAt) {
			count++
		}
	}
	return count
}

func (m *Memory) injectedError(op, key string) error {
	if m.FailOp != nil {
		return m.FailOp(op, key)
	}
	return nil
}
