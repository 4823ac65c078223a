package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickhamzaokello/ColabFavourites/cache"
	"github.com/patrickhamzaokello/ColabFavourites/config"
)

func TestOpenCache(t *testing.T) {
	cfg := config.FromEnv()

	cfg.EnableCaching = false
	rc, closeFn, err := openCache(cfg)
	require.NoError(t, err)
	assert.Nil(t, rc)
	closeFn()

	cfg.EnableCaching = true
	cfg.CacheBackend = "memory"
	rc, closeFn, err = openCache(cfg)
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryStore{}, rc)
	closeFn()

	cfg.CacheBackend = "memcached"
	_, _, err = openCache(cfg)
	assert.Error(t, err)
}

func TestOpenSource_DatasetFile(t *testing.T) {
	cfg := config.FromEnv()
	cfg.DatasetPath = t.TempDir() + "/catalog.json"

	src, closeFn, err := openSource(cfg)
	require.NoError(t, err)
	require.NotNil(t, src)
	closeFn()
}
