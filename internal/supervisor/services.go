// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/shopgraph/internal/logging"
)

// HTTPServer matches *http.Server's lifecycle methods so the service can
// be tested with a mock.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService wraps an HTTP server as a supervised service, translating
// ListenAndServe's blocking pattern into suture's context-aware Serve.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPService creates the HTTP server service wrapper.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. Returns nil on graceful shutdown;
// http.ErrServerClosed is expected then and not treated as a failure.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return ctx.Err()
	}
}

func (h *HTTPService) String() string { return "http-server" }

// garbageCollector matches the store's value-log GC method.
type garbageCollector interface {
	RunGC() error
}

// StoreGCService periodically runs the store's value-log garbage
// collector. Badger does not garbage-collect on its own; without this
// loop the value log grows unbounded.
type StoreGCService struct {
	store    garbageCollector
	interval time.Duration
}

// NewStoreGCService creates the GC loop service.
func NewStoreGCService(store garbageCollector, interval time.Duration) *StoreGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &StoreGCService{store: store, interval: interval}
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.store.RunGC(); err != nil {
				logging.WithComponent("supervisor").Warn().
					Err(err).
					Msg("Store garbage collection failed")
			}
		}
	}
}

func (s *StoreGCService) String() string { return "store-gc" }
