// Package config loads the entity cache and load coordinator's tunables from
// environment variables, with an optional YAML manifest overlay for the same
// fields. Environment variables always win over the manifest, so a deployment
// can ship one manifest per environment and still override a single value at
// the process level without editing the file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// CacheType is the eviction policy name accepted for both the node and
// relationship caches.
type CacheType string

const (
	CacheWeak   CacheType = "weak"
	CacheSoft   CacheType = "soft"
	CacheLRU    CacheType = "lru"
	CacheNone   CacheType = "none"
	CacheStrong CacheType = "strong"
)

func (c CacheType) valid() bool {
	switch c {
	case CacheWeak, CacheSoft, CacheLRU, CacheNone, CacheStrong:
		return true
	default:
		return false
	}
}

// Config holds every tunable of the entity cache and load coordinator.
type Config struct {
	UseAdaptiveCache       bool      `yaml:"use_adaptive_cache"`
	AdaptiveCacheHeapRatio float64   `yaml:"adaptive_cache_heap_ratio"`
	MinNodeCacheSize       int       `yaml:"min_node_cache_size"`
	MinRelationshipSize    int       `yaml:"min_relationship_cache_size"`
	MaxNodeCacheSize       int       `yaml:"max_node_cache_size"`
	MaxRelationshipSize    int       `yaml:"max_relationship_cache_size"`
	CacheType              CacheType `yaml:"cache_type"`
	LoadLockStripes        int       `yaml:"load_lock_stripes"`
}

// defaults returns the spec's documented defaults before any environment
// variable or manifest value is applied.
func defaults() Config {
	return Config{
		UseAdaptiveCache:       false,
		AdaptiveCacheHeapRatio: 0.77,
		MinNodeCacheSize:       0,
		MinRelationshipSize:    0,
		MaxNodeCacheSize:       1500,
		MaxRelationshipSize:    3500,
		CacheType:              CacheLRU,
		LoadLockStripes:        32,
	}
}

// Load builds a Config from its defaults, overlaid by manifestPath (if
// non-empty) and then by environment variables, and validates the result.
// Pass an empty manifestPath to load purely from the environment.
func Load(manifestPath string) (*Config, error) {
	cfg := defaults()

	if manifestPath != "" {
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			return nil, fmt.Errorf("config: reading manifest: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parsing manifest: %w", err)
		}
	}

	cfg.UseAdaptiveCache = getEnvBool("USE_ADAPTIVE_CACHE", cfg.UseAdaptiveCache)
	cfg.AdaptiveCacheHeapRatio = getEnvFloat("ADAPTIVE_CACHE_HEAP_RATIO", cfg.AdaptiveCacheHeapRatio)
	cfg.MinNodeCacheSize = getEnvInt("MIN_NODE_CACHE_SIZE", cfg.MinNodeCacheSize)
	cfg.MinRelationshipSize = getEnvInt("MIN_RELATIONSHIP_CACHE_SIZE", cfg.MinRelationshipSize)
	cfg.MaxNodeCacheSize = getEnvInt("MAX_NODE_CACHE_SIZE", cfg.MaxNodeCacheSize)
	cfg.MaxRelationshipSize = getEnvInt("MAX_RELATIONSHIP_CACHE_SIZE", cfg.MaxRelationshipSize)
	cfg.CacheType = CacheType(getEnv("CACHE_TYPE", string(cfg.CacheType)))
	cfg.LoadLockStripes = getEnvInt("LOAD_LOCK_STRIPES", cfg.LoadLockStripes)

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize clamps AdaptiveCacheHeapRatio into the [0.1, 0.95] range.
// LoadLockStripes is left as configured (minimum 1) — striped.New
// already rounds it up to the next power of two when the load-lock array is
// built, so rounding it twice would just be redundant.
func (c *Config) normalize() {
	if c.AdaptiveCacheHeapRatio < 0.1 {
		c.AdaptiveCacheHeapRatio = 0.1
	}
	if c.AdaptiveCacheHeapRatio > 0.95 {
		c.AdaptiveCacheHeapRatio = 0.95
	}
	if c.LoadLockStripes < 1 {
		c.LoadLockStripes = 1
	}
}

// Validate checks the loaded configuration for internally inconsistent
// values Load's defaulting/clamping can't catch on its own.
func (c *Config) Validate() error {
	if !c.CacheType.valid() {
		return fmt.Errorf("config: cache_type %q is not one of weak, soft, lru, none, strong", c.CacheType)
	}
	if c.MinNodeCacheSize > c.MaxNodeCacheSize {
		return fmt.Errorf("config: min_node_cache_size (%d) exceeds max_node_cache_size (%d)", c.MinNodeCacheSize, c.MaxNodeCacheSize)
	}
	if c.MinRelationshipSize > c.MaxRelationshipSize {
		return fmt.Errorf("config: min_relationship_cache_size (%d) exceeds max_relationship_cache_size (%d)", c.MinRelationshipSize, c.MaxRelationshipSize)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
