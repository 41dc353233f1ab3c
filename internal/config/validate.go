// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validation errors returned for cross-field rules that struct tags cannot express.
var (
	// ErrStorePathRequired indicates a persistent store without a path.
	ErrStorePathRequired = errors.New("store.path is required when store.in_memory is false")

	// ErrWeightsZero indicates both merge weights are zero, which would make
	// every ranking score zero.
	ErrWeightsZero = errors.New("recommend.similarity_weight and recommend.popularity_weight cannot both be zero")

	// ErrLimitOrder indicates default_limit exceeds max_limit.
	ErrLimitOrder = errors.New("recommend.default_limit cannot exceed recommend.max_limit")
)

// structValidator validates struct tags. Single instance: the validator caches
// struct metadata and is safe for concurrent use.
var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for invalid or inconsistent values.
// It combines validator/v10 struct-tag checks with cross-field rules.
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid value for %s (rule: %s)", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("struct validation: %w", err)
	}

	if !c.Store.InMemory && c.Store.Path == "" {
		return ErrStorePathRequired
	}

	if c.Recommend.SimilarityWeight == 0 && c.Recommend.PopularityWeight == 0 {
		return ErrWeightsZero
	}

	if c.Recommend.DefaultLimit > c.Recommend.MaxLimit {
		return ErrLimitOrder
	}

	if err := validateDurations(c); err != nil {
		return err
	}

	return nil
}

// validateDurations rejects non-positive durations that would disable
// timeouts or TTLs silently.
func validateDurations(c *Config) error {
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"store.op_timeout", c.Store.OpTimeout},
		{"store.gc_interval", c.Store.GCInterval},
		{"cache.exact_ttl", c.Cache.ExactTTL},
		{"cache.flexible_ttl", c.Cache.FlexibleTTL},
		{"cache.individual_ttl", c.Cache.IndividualTTL},
		{"session.ttl", c.Session.TTL},
		{"bridge.request_timeout", c.Bridge.RequestTimeout},
		{"bridge.retry_delay", c.Bridge.RetryDelay},
		{"bridge.open_timeout", c.Bridge.OpenTimeout},
		{"catalog.timeout", c.Catalog.Timeout},
	}

	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}

	return nil
}
