package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"DEFAULT_K_NEIGHBORS", "MAX_K_NEIGHBORS", "CACHE_TTL", "ENABLE_CACHING", "BAYESIAN_CONFIDENCE_WEIGHT"} {
		t.Setenv(key, "")
	}
	// t.Setenv with "" still marks the key as present; parse failures must fall back.
	cfg := FromEnv()

	assert.Equal(t, 10, cfg.DefaultKNeighbors)
	assert.Equal(t, 50, cfg.MaxKNeighbors)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.True(t, cfg.EnableCaching)
	assert.InDelta(t, 10.0, cfg.BayesianConfidenceWeight, 1e-9)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("MAX_K_NEIGHBORS", "25")
	t.Setenv("CACHE_TTL", "120")
	t.Setenv("REBUILD_INTERVAL", "15m")
	t.Setenv("ENABLE_CACHING", "false")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("BAYESIAN_CONFIDENCE_WEIGHT", "4.5")
	t.Setenv("HTTP_PORT", "9000")

	cfg := FromEnv()

	assert.Equal(t, 25, cfg.MaxKNeighbors)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.RebuildInterval)
	assert.False(t, cfg.EnableCaching)
	assert.Equal(t, "redis", cfg.CacheBackend)
	assert.InDelta(t, 4.5, cfg.BayesianConfidenceWeight, 1e-9)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
}
