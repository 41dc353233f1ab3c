// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package bridge

import (
	"strings"

	"github.com/tomtom215/shopgraph/internal/catalog"
	"github.com/tomtom215/shopgraph/internal/models"
)

// fallbackConfidence is the fixed confidence for locally classified
// intents. Deliberately low so downstream ranking treats it as a weak
// signal.
const fallbackConfidence = 0.3

// fallbackKeywords maps query substrings to intents, checked in order so
// the more specific intents win over the generic ones.
var fallbackKeywords = []struct {
	intent   string
	keywords []string
}{
	{models.IntentCompare, []string{"compare", " vs ", "versus", "difference between"}},
	{models.IntentPurchase, []string{"buy", "purchase", "order", "checkout", "add to cart"}},
	{models.IntentSupport, []string{"return", "refund", "help", "support", "broken", "warranty"}},
	{models.IntentBrowse, []string{"browse", "show me", "what's new", "trending", "popular"}},
}

// FallbackIntent classifies a query with the local keyword heuristic.
// It is pure and never fails; unknown queries default to search.
func FallbackIntent(query, marketID string) models.IntentRecord {
	lowered := strings.ToLower(query)

	intent := models.IntentSearch
	for _, rule := range fallbackKeywords {
		if containsAny(lowered, rule.keywords) {
			intent = rule.intent
			break
		}
	}

	return models.IntentRecord{
		Intent:     intent,
		Confidence: fallbackConfidence,
		Source:     models.IntentSourceLocalFallback,
		MarketID:   marketID,
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// MarketContextFor builds the market context from the static market
// registry. Unknown markets get the default market's settings.
func MarketContextFor(marketID string) MarketContext {
	info := catalog.MarketFor(marketID)
	return MarketContext{
		MarketID: marketID,
		Currency: info.Currency,
		Locale:   info.Locale,
	}
}
