// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package recommender

import (
	"sort"
	"strings"
	"unicode"

	"github.com/tomtom215/shopgraph/internal/models"
)

// tokenize splits text into lowercase alphanumeric tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// similarityScore measures lexical overlap between the query and the
// product's title and category: the fraction of query tokens that appear
// in the product text, with token-prefix matches counting half. Returns a
// value in [0, 1]; an empty query scores 0 for every product.
func similarityScore(queryTokens []string, p models.Product) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	productTokens := tokenize(p.Title + " " + p.Category)
	if len(productTokens) == 0 {
		return 0
	}

	var matched float64
	for _, qt := range queryTokens {
		best := 0.0
		for _, pt := range productTokens {
			switch {
			case qt == pt:
				best = 1.0
			case best < 0.5 && len(qt) >= 3 && strings.HasPrefix(pt, qt):
				best = 0.5
			}
			if best == 1.0 {
				break
			}
		}
		matched += best
	}

	return matched / float64(len(queryTokens))
}

// rank orders candidates by the weighted blend of lexical similarity and
// catalog popularity, highest first. Sorting is stable so equal scores
// keep their catalog order. The input slice is not modified.
func rank(candidates []models.Product, query string, similarityWeight, popularityWeight float64) []models.Product {
	queryTokens := tokenize(query)

	type scored struct {
		product models.Product
		score   float64
	}

	ranked := make([]scored, len(candidates))
	for i, p := range candidates {
		ranked[i] = scored{
			product: p,
			score:   similarityWeight*similarityScore(queryTokens, p) + popularityWeight*clamp01(p.PopularityScore),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]models.Product, len(ranked))
	for i, s := range ranked {
		out[i] = s.product
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
