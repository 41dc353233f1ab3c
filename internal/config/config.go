// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/shopgraph/config.yaml",
	"/etc/shopgraph/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix is the prefix for all Shopgraph environment variables.
// SHOPGRAPH_SERVER_PORT -> server.port, SHOPGRAPH_BRIDGE_URL -> bridge.url.
const envPrefix = "SHOPGRAPH_"

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	Cache     CacheConfig     `koanf:"cache"`
	Session   SessionConfig   `koanf:"session"`
	Bridge    BridgeConfig    `koanf:"bridge"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Recommend RecommendConfig `koanf:"recommend"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// RateLimitReqs limits requests per client IP per RateLimitWindow.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// StoreConfig holds the BadgerDB key-value store settings shared by the
// product cache and the session store.
type StoreConfig struct {
	// Path is the on-disk BadgerDB directory. Empty with InMemory=false is invalid.
	Path string `koanf:"path"`
	// InMemory runs Badger without persistence. Used by tests and dev setups.
	InMemory bool `koanf:"in_memory"`
	// OpTimeout bounds each store operation; reads past it degrade to a miss.
	OpTimeout time.Duration `koanf:"op_timeout"`
	// GCInterval is how often the value-log garbage collector runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// CacheConfig holds product cache tiering settings.
type CacheConfig struct {
	// ExactTTL is the lifetime of exact-fingerprint entries.
	ExactTTL time.Duration `koanf:"exact_ttl"`
	// FlexibleTTL is the lifetime of market-level entries.
	FlexibleTTL time.Duration `koanf:"flexible_ttl"`
	// IndividualTTL is the lifetime of per-product entries.
	IndividualTTL time.Duration `koanf:"individual_ttl"`
	// FlexibleMaxItems caps how many products a market-level entry stores.
	FlexibleMaxItems int `koanf:"flexible_max_items" validate:"min=1"`
}

// SessionConfig holds conversation session settings.
type SessionConfig struct {
	// TTL is the session lifetime, renewed on every turn.
	TTL time.Duration `koanf:"ttl"`
}

// BridgeConfig holds the conversational bridge client settings.
type BridgeConfig struct {
	URL string `koanf:"url" validate:"omitempty,url"`
	// RequestTimeout is the hard per-call timeout, independent of the breaker.
	RequestTimeout time.Duration `koanf:"request_timeout"`
	// RetryAttempts bounds retries for timeouts and 5xx responses.
	RetryAttempts int `koanf:"retry_attempts" validate:"min=1,max=10"`
	// RetryDelay is the initial backoff delay; it doubles per attempt.
	RetryDelay time.Duration `koanf:"retry_delay"`
	// FailureThreshold is the consecutive-failure count that opens the breaker.
	FailureThreshold int `koanf:"failure_threshold" validate:"min=1"`
	// SuccessThreshold is the consecutive-success count that closes a half-open breaker.
	SuccessThreshold int `koanf:"success_threshold" validate:"min=1"`
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration `koanf:"open_timeout"`
}

// CatalogConfig holds the origin catalog client settings.
type CatalogConfig struct {
	URL     string        `koanf:"url" validate:"omitempty,url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
	// RateLimit caps origin requests per second (0 = unlimited).
	RateLimit float64 `koanf:"rate_limit" validate:"min=0"`
	// RateBurst is the rate limiter burst size.
	RateBurst int `koanf:"rate_burst" validate:"min=0"`
}

// RecommendConfig holds coordinator merge settings.
type RecommendConfig struct {
	// SimilarityWeight scales the content-similarity score in the merge.
	SimilarityWeight float64 `koanf:"similarity_weight" validate:"min=0"`
	// PopularityWeight scales the catalog-popularity score in the merge.
	PopularityWeight float64 `koanf:"popularity_weight" validate:"min=0"`
	// DefaultLimit is used when a request does not specify a limit.
	DefaultLimit int `koanf:"default_limit" validate:"min=1"`
	// MaxLimit caps the per-request item count.
	MaxLimit int `koanf:"max_limit" validate:"min=1"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8480,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Store: StoreConfig{
			Path:       "/data/shopgraph",
			InMemory:   false,
			OpTimeout:  time.Second,
			GCInterval: 10 * time.Minute,
		},
		Cache: CacheConfig{
			ExactTTL:         5 * time.Minute,
			FlexibleTTL:      10 * time.Minute,
			IndividualTTL:    10 * time.Minute,
			FlexibleMaxItems: 20,
		},
		Session: SessionConfig{
			TTL: 30 * time.Minute,
		},
		Bridge: BridgeConfig{
			URL:              "",
			RequestTimeout:   10 * time.Second,
			RetryAttempts:    3,
			RetryDelay:       500 * time.Millisecond,
			FailureThreshold: 3,
			SuccessThreshold: 2,
			OpenTimeout:      30 * time.Second,
		},
		Catalog: CatalogConfig{
			URL:       "",
			APIKey:    "",
			Timeout:   5 * time.Second,
			RateLimit: 50,
			RateBurst: 10,
		},
		Recommend: RecommendConfig{
			SimilarityWeight: 0.6,
			PopularityWeight: 0.4,
			DefaultLimit:     10,
			MaxLimit:         50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables: SHOPGRAPH_* overrides any setting
//
// Precedence: ENV > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// SHOPGRAPH_BRIDGE_FAILURE_THRESHOLD -> bridge.failure_threshold
	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps SHOPGRAPH_* environment variable names to koanf paths.
// The first underscore after the prefix separates the section from the key:
//
//	SHOPGRAPH_SERVER_PORT              -> server.port
//	SHOPGRAPH_BRIDGE_FAILURE_THRESHOLD -> bridge.failure_threshold
//	SHOPGRAPH_CACHE_EXACT_TTL          -> cache.exact_ttl
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// sliceConfigPaths defines which config paths are parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known
// slice fields. Env vars come in as strings but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}
