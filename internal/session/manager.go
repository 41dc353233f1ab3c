// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/shopgraph/internal/config"
	"github.com/tomtom215/shopgraph/internal/logging"
	"github.com/tomtom215/shopgraph/internal/metrics"
	"github.com/tomtom215/shopgraph/internal/models"
	"github.com/tomtom215/shopgraph/internal/store"
)

// ErrNotFound indicates no session exists for the id.
var ErrNotFound = errors.New("session: not found")

const keyPrefix = "session:"

// Manager owns all session state. Every mutation goes through AddTurn,
// which persists the entire serialized session in one write; there is no
// field-level patch path.
type Manager struct {
	kv  store.KV
	ttl time.Duration

	// locks serializes mutations per session id so concurrent AddTurn
	// calls cannot both read turn_count N and write N+1.
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	sync.Mutex
	refs int
}

// NewManager creates a session manager over kv.
func NewManager(kv store.KV, cfg config.SessionConfig) *Manager {
	return &Manager{
		kv:    kv,
		ttl:   cfg.TTL,
		locks: make(map[string]*sessionLock),
	}
}

// lock acquires the per-session mutex. The returned func releases it and
// drops the map entry once no caller holds it, so the lock table stays
// proportional to in-flight requests rather than total sessions.
func (m *Manager) lock(sessionID string) func() {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		m.locks[sessionID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, sessionID)
		}
		m.mu.Unlock()
	}
}

// GetOrCreate returns the session for sessionID, creating and persisting a
// fresh one when none exists. An empty sessionID gets a generated id.
//
// A store read error is retried once; if the retry also fails, the call
// degrades to a fresh session so the request can proceed. Turn numbering
// restarts in that case, which is logged as a degradation.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID, userID, marketID string) (*Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	unlock := m.lock(sessionID)
	defer unlock()

	sess, err := m.loadLocked(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		logging.WithComponent("session").Debug().
			Err(err).
			Str("session_id", sessionID).
			Msg("Session read failed, retrying once")
		metrics.SessionStoreErrors.WithLabelValues("get").Inc()
		sess, err = m.loadLocked(ctx, sessionID)
	}

	switch {
	case err == nil:
		return sess, nil
	case errors.Is(err, ErrNotFound):
		// Fall through to creation.
	default:
		metrics.SessionStoreErrors.WithLabelValues("get").Inc()
		logging.WithComponent("session").Warn().
			Err(err).
			Str("session_id", sessionID).
			Msg("Session read failed twice, degrading to fresh session")
	}

	now := time.Now().UTC()
	sess = &Session{
		SessionID:       sessionID,
		UserID:          userID,
		MarketID:        marketID,
		TurnCount:       0,
		CreatedAt:       now,
		LastUpdateAt:    now,
		ShownProductIDs: []string{},
	}

	if err := m.persistLocked(ctx, sess); err != nil {
		// Creation persistence is best-effort: the first AddTurn will
		// write the full session again.
		metrics.SessionStoreErrors.WithLabelValues("set").Inc()
		logging.WithComponent("session").Warn().
			Err(err).
			Str("session_id", sessionID).
			Msg("Failed to persist new session")
	}

	metrics.SessionsCreated.Inc()
	return sess, nil
}

// AddTurn appends a turn to the session and persists the whole session
// before returning. The turn number is never exposed unless the persist
// succeeded; a write failure is surfaced to the caller.
func (m *Manager) AddTurn(ctx context.Context, sessionID, query string, intent models.IntentRecord, recommendedIDs []string) (*Turn, error) {
	unlock := m.lock(sessionID)
	defer unlock()

	sess, err := m.loadLocked(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("add turn: %w", err)
		}
		metrics.SessionStoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("add turn: load session %s: %w", sessionID, err)
	}

	turn := Turn{
		TurnNumber:            sess.TurnCount + 1,
		UserQuery:             query,
		DetectedIntent:        intent.Intent,
		EvolvedIntent:         EvolveIntent(sess.LastEvolvedIntent(), intent.Intent),
		IntentConfidence:      intent.Confidence,
		IntentSource:          intent.Source,
		RecommendedProductIDs: recommendedIDs,
		Timestamp:             time.Now().UTC(),
	}

	sess.Turns = append(sess.Turns, turn)
	sess.TurnCount = turn.TurnNumber
	sess.LastUpdateAt = turn.Timestamp
	for _, id := range recommendedIDs {
		if !sess.Shown(id) {
			sess.ShownProductIDs = append(sess.ShownProductIDs, id)
		}
	}

	if err := m.persistLocked(ctx, sess); err != nil {
		metrics.SessionStoreErrors.WithLabelValues("set").Inc()
		return nil, fmt.Errorf("add turn: persist session %s: %w", sessionID, err)
	}

	metrics.SessionTurns.Inc()
	return &turn, nil
}

// Load returns the session for sessionID or ErrNotFound.
func (m *Manager) Load(ctx context.Context, sessionID string) (*Session, error) {
	unlock := m.lock(sessionID)
	defer unlock()
	return m.loadLocked(ctx, sessionID)
}

func (m *Manager) loadLocked(ctx context.Context, sessionID string) (*Session, error) {
	data, err := m.kv.Get(ctx, keyPrefix+sessionID)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// persistLocked writes the full serialized session and renews its TTL.
func (m *Manager) persistLocked(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.SessionID, err)
	}
	return m.kv.Set(ctx, keyPrefix+sess.SessionID, data, m.ttl)
}
