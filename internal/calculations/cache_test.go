package calculations

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := Open(filepath.Join(t.TempDir(), "calculations.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCacheRoundTrip(t *testing.T) {
	cache := openTestCache(t)

	require.NoError(t, cache.Set("statistics", "abc", []byte("payload"), time.Hour))

	data, ok := cache.Get("statistics", "abc")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), data)
}

func TestCacheMiss(t *testing.T) {
	cache := openTestCache(t)

	_, ok := cache.Get("statistics", "missing")
	assert.False(t, ok)

	// Same key under a different kind is a different entry.
	require.NoError(t, cache.Set("statistics", "abc", []byte("x"), time.Hour))
	_, ok = cache.Get("frontier", "abc")
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	cache := openTestCache(t)

	require.NoError(t, cache.Set("statistics", "stale", []byte("x"), -time.Second))
	_, ok := cache.Get("statistics", "stale")
	assert.False(t, ok)
}

func TestCacheReplace(t *testing.T) {
	cache := openTestCache(t)

	require.NoError(t, cache.Set("statistics", "abc", []byte("old"), time.Hour))
	require.NoError(t, cache.Set("statistics", "abc", []byte("new"), time.Hour))

	data, ok := cache.Get("statistics", "abc")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), data)
}

func TestCachePrune(t *testing.T) {
	cache := openTestCache(t)

	require.NoError(t, cache.Set("statistics", "stale", []byte("x"), -time.Second))
	require.NoError(t, cache.Set("statistics", "fresh", []byte("y"), time.Hour))

	removed, err := cache.Prune()
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, ok := cache.Get("statistics", "fresh")
	assert.True(t, ok)
}
