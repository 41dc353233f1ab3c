// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/shopgraph/internal/config"
	"github.com/tomtom215/shopgraph/internal/logging"
)

// BadgerStore implements KV using BadgerDB. Entries carry a native Badger
// TTL, so expiry happens inside the store without a cleanup scan.
type BadgerStore struct {
	db        *badger.DB
	opTimeout time.Duration
	closed    bool
	mu        sync.RWMutex
}

var (
	sharedStore *BadgerStore
	sharedErr   error
	sharedOnce  sync.Once
)

// Shared returns the process-wide store, opening it on first call.
// Subsequent calls return the same instance regardless of cfg. The store is
// the one shared connection for cache and session data; only Close mutates
// it after initialization.
func Shared(cfg config.StoreConfig) (*BadgerStore, error) {
	sharedOnce.Do(func() {
		sharedStore, sharedErr = Open(cfg)
	})
	return sharedStore, sharedErr
}

// Open opens a BadgerDB-backed store at cfg.Path, or in memory when
// cfg.InMemory is set. Callers that need isolation (tests) use Open directly;
// production wiring goes through Shared.
func Open(cfg config.StoreConfig) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	// Badger's default logger writes unstructured lines; route through zerolog instead.
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}

	return &BadgerStore{db: db, opTimeout: cfg.OpTimeout}, nil
}

// opContext bounds an operation with the configured timeout so a stalled
// store returns quickly instead of holding the request until the HTTP
// deadline. Callers treat the deadline error like any other store failure.
func (s *BadgerStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// Get returns the value for key, or ErrKeyNotFound for absent/expired keys.
// The read runs in a goroutine so a slow disk cannot hold the caller past
// its context deadline; an abandoned read finishes harmlessly in background.
func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	type result struct {
		value []byte
		err   error
	}
	ch := make(chan result, 1)

	go func() {
		var value []byte
		err := s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			if err != nil {
				return fmt.Errorf("get %q: %w", key, err)
			}
			value, err = item.ValueCopy(nil)
			return err
		})
		ch <- result{value: value, err: err}
	}()

	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Set stores value under key with the given TTL.
func (s *BadgerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	ch := make(chan error, 1)
	go func() {
		ch <- s.db.Update(func(txn *badger.Txn) error {
			entry := badger.NewEntry([]byte(key), value)
			if ttl > 0 {
				entry = entry.WithTTL(ttl)
			}
			return txn.SetEntry(entry)
		})
	}()

	select {
	case err := <-ch:
		if err != nil {
			return fmt.Errorf("set %q: %w", key, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delete removes key. Absent keys are not an error.
func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	ch := make(chan error, 1)
	go func() {
		ch <- s.db.Update(func(txn *badger.Txn) error {
			err := txn.Delete([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		})
	}()

	select {
	case err := <-ch:
		if err != nil {
			return fmt.Errorf("delete %q: %w", key, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunGC runs one value-log garbage collection pass. Badger returns
// ErrNoRewrite when there was nothing to collect; that is not an error for
// the caller.
func (s *BadgerStore) RunGC() error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	err := s.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// Close closes the underlying database. Further operations return ErrClosed.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *BadgerStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// badgerLogger adapts Badger's logger interface to zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Msgf("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn().Msgf("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Msgf("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Trace().Msgf("badger: "+format, args...)
}
