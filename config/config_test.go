package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphkit/entitycache/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"USE_ADAPTIVE_CACHE", "ADAPTIVE_CACHE_HEAP_RATIO", "MIN_NODE_CACHE_SIZE",
		"MIN_RELATIONSHIP_CACHE_SIZE", "MAX_NODE_CACHE_SIZE", "MAX_RELATIONSHIP_CACHE_SIZE",
		"CACHE_TYPE", "LOAD_LOCK_STRIPES",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultsWithNoEnvOrManifest(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.False(t, cfg.UseAdaptiveCache)
	assert.Equal(t, 0.77, cfg.AdaptiveCacheHeapRatio)
	assert.Equal(t, 0, cfg.MinNodeCacheSize)
	assert.Equal(t, 0, cfg.MinRelationshipSize)
	assert.Equal(t, 1500, cfg.MaxNodeCacheSize)
	assert.Equal(t, 3500, cfg.MaxRelationshipSize)
	assert.Equal(t, config.CacheLRU, cfg.CacheType)
	assert.Equal(t, 32, cfg.LoadLockStripes)
}

func TestLoad_EnvironmentOverridesValidCacheType(t *testing.T) {
	clearEnv(t)
	t.Setenv("USE_ADAPTIVE_CACHE", "true")
	t.Setenv("MAX_NODE_CACHE_SIZE", "9000")
	t.Setenv("CACHE_TYPE", "strong")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.True(t, cfg.UseAdaptiveCache)
	assert.Equal(t, 9000, cfg.MaxNodeCacheSize)
	assert.Equal(t, config.CacheStrong, cfg.CacheType)
}

func TestLoad_HeapRatioClampedToRange(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADAPTIVE_CACHE_HEAP_RATIO", "1.5")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.95, cfg.AdaptiveCacheHeapRatio)

	clearEnv(t)
	t.Setenv("ADAPTIVE_CACHE_HEAP_RATIO", "0.0")
	cfg, err = config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.1, cfg.AdaptiveCacheHeapRatio)
}

func TestLoad_RejectsInvalidCacheType(t *testing.T) {
	clearEnv(t)
	t.Setenv("CACHE_TYPE", "not_a_real_policy")

	_, err := config.Load("")
	assert.Error(t, err)
}

func TestLoad_RejectsMinExceedingMax(t *testing.T) {
	clearEnv(t)
	t.Setenv("MIN_NODE_CACHE_SIZE", "5000")
	t.Setenv("MAX_NODE_CACHE_SIZE", "1500")

	_, err := config.Load("")
	assert.Error(t, err)
}

func TestLoad_ManifestOverlayThenEnvWins(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache_type: weak
max_node_cache_size: 2000
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.CacheWeak, cfg.CacheType)
	assert.Equal(t, 2000, cfg.MaxNodeCacheSize)

	t.Setenv("CACHE_TYPE", "none")
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.CacheNone, cfg.CacheType, "an environment variable overrides the manifest")
	assert.Equal(t, 2000, cfg.MaxNodeCacheSize, "fields the environment doesn't set keep the manifest's value")
}

func TestLoad_MissingManifestFileFails(t *testing.T) {
	clearEnv(t)
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
