package featureflag

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Druk83/TrainingGround/engine/content"
	"github.com/Druk83/TrainingGround/engine/content/contenttest"
)

func setup(t *testing.T) (*miniredis.Miniredis, *contenttest.Memory, *Reader) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := contenttest.NewMemory()
	return mr, repo, NewReader(client, repo, 5*time.Minute)
}

func TestReader_IsEnabled(t *testing.T) {
	t.Run("Should read the store once and serve later calls from cache", func(t *testing.T) {
		mr, repo, reader := setup(t)
		repo.Flags["llm"] = content.FeatureFlag{Name: "llm", Enabled: true}
		assert.True(t, reader.IsEnabled(t.Context(), "llm", false))
		assert.True(t, reader.IsEnabled(t.Context(), "llm", false))
		assert.Equal(t, 1, repo.CallCount("GetFlag"))
		got, err := mr.Get(CacheKey("llm"))
		require.NoError(t, err)
		assert.Equal(t, "1", got)
		assert.Equal(t, 5*time.Minute, mr.TTL(CacheKey("llm")))
	})

	t.Run("Should respect an explicitly disabled flag", func(t *testing.T) {
		_, repo, reader := setup(t)
		repo.Flags["llm"] = content.FeatureFlag{Name: "llm", Enabled: false}
		assert.False(t, reader.IsEnabled(t.Context(), "llm", true))
	})

	t.Run("Should use and cache the default when the flag is absent", func(t *testing.T) {
		mr, _, reader := setup(t)
		assert.True(t, reader.IsEnabled(t.Context(), "absent", true))
		got, err := mr.Get(CacheKey("absent"))
		require.NoError(t, err)
		assert.Equal(t, "1", got)
	})

	t.Run("Should return the cached value without touching the store", func(t *testing.T) {
		mr, repo, reader := setup(t)
		require.NoError(t, mr.Set(CacheKey("llm"), "0"))
		repo.Flags["llm"] = content.FeatureFlag{Name: "llm", Enabled: true}
		assert.False(t, reader.IsEnabled(t.Context(), "llm", true))
		assert.Zero(t, repo.CallCount("GetFlag"))
	})

	t.Run("Should fall back to the default without caching on store errors", func(t *testing.T) {
		mr, repo, reader := setup(t)
		repo.Err = contenttest.ErrUnavailable
		assert.True(t, reader.IsEnabled(t.Context(), "llm", true))
		assert.False(t, mr.Exists(CacheKey("llm")))
	})

	t.Run("Should still consult the store when the cache is down", func(t *testing.T) {
		mr, repo, reader := setup(t)
		repo.Flags["llm"] = content.FeatureFlag{Name: "llm", Enabled: true}
		mr.Close()
		assert.True(t, reader.IsEnabled(t.Context(), "llm", false))
	})
}
