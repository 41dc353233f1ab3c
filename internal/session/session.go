// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

// Package session manages conversation state. A Session accumulates Turns
// and the running set of product ids already shown to the user; it is
// persisted whole on every mutation under a TTL renewed per turn.
//
// Turn numbering is the package's central invariant: within one session,
// turn numbers are 1, 2, 3, ... with no gaps or repeats, even when AddTurn
// races with itself. The Manager serializes mutations per session id to
// guarantee this.
package session

import (
	"time"

	"github.com/tomtom215/shopgraph/internal/models"
)

// Turn is one query/response exchange. Turns are append-only; an appended
// Turn is never edited or removed.
type Turn struct {
	TurnNumber            int       `json:"turn_number"`
	UserQuery             string    `json:"user_query"`
	DetectedIntent        string    `json:"detected_intent"`
	EvolvedIntent         string    `json:"evolved_intent"`
	IntentConfidence      float64   `json:"intent_confidence"`
	IntentSource          string    `json:"intent_source"`
	RecommendedProductIDs []string  `json:"recommended_product_ids"`
	Timestamp             time.Time `json:"timestamp"`
}

// Session is the full conversation state for one session id. It is
// serialized as a single value; partial field updates are not supported.
type Session struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	MarketID     string    `json:"market_id"`
	TurnCount    int       `json:"turn_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastUpdateAt time.Time `json:"last_update_at"`
	// ShownProductIDs accumulates every recommended product id across all
	// turns. It never shrinks within a session.
	ShownProductIDs []string `json:"shown_product_ids"`
	Turns           []Turn   `json:"turns"`
}

// Shown reports whether productID has already been recommended in this
// session.
func (s *Session) Shown(productID string) bool {
	for _, id := range s.ShownProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// ShownSet returns the shown ids as a set for bulk exclusion.
func (s *Session) ShownSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.ShownProductIDs))
	for _, id := range s.ShownProductIDs {
		set[id] = struct{}{}
	}
	return set
}

// LastEvolvedIntent returns the evolved intent of the most recent turn, or
// empty for a fresh session.
func (s *Session) LastEvolvedIntent() string {
	if len(s.Turns) == 0 {
		return ""
	}
	return s.Turns[len(s.Turns)-1].EvolvedIntent
}

// intentEvolution maps (previous, current) intent pairs to a refined label.
// Pairs absent from the table pass the current intent through unchanged.
var intentEvolution = map[[2]string]string{
	{models.IntentSearch, models.IntentSearch}:         models.IntentRefinedSearch,
	{models.IntentRefinedSearch, models.IntentSearch}:  models.IntentRefinedSearch,
	{models.IntentBrowse, models.IntentBrowse}:         models.IntentFocusedBrowse,
	{models.IntentBrowse, models.IntentSearch}:         models.IntentRefinedSearch,
	{models.IntentSearch, models.IntentCompare}:        models.IntentComparison,
	{models.IntentRefinedSearch, models.IntentCompare}: models.IntentComparison,
	{models.IntentCompare, models.IntentPurchase}:      models.IntentInformedPurchase,
	{models.IntentComparison, models.IntentPurchase}:   models.IntentInformedPurchase,
}

// EvolveIntent refines the current intent in the context of the previous
// turn's intent. It is pure: no store access, no side effects.
func EvolveIntent(previous, current string) string {
	if evolved, ok := intentEvolution[[2]string{previous, current}]; ok {
		return evolved
	}
	return current
}
