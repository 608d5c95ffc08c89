package featureflag

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Druk83/TrainingGround/engine/content"
	"github.com/Druk83/TrainingGround/pkg/logger"
)

const cacheKeyPrefix = "feature_flag:"

func CacheKey(name string) string {
	return cacheKeyPrefix + name
}

// Reader resolves boolean flags through a short-lived Redis cache.
type Reader struct {
	client redis.Cmdable
	repo   content.FlagRepository
	ttl    time.Duration
}

func NewReader(client redis.Cmdable, repo content.FlagRepository, ttl time.Duration) *Reader {
	return &Reader{client: client, repo: repo, ttl: ttl}
}

// IsEnabled returns the cached value, else the stored flag, else def.
// Store failures return def without caching it.
func (r *Reader) IsEnabled(ctx context.Context, name string, def bool) bool {
	log := logger.FromContext(ctx).With("component", "feature_flags", "flag", name)
	key := CacheKey(name)
	cached, err := r.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached == "1"
	case !errors.Is(err, redis.Nil):
		log.Warn("Flag cache read failed", "error", err)
	}
	enabled := def
	flag, err := r.repo.GetFlag(ctx, name)
	switch {
	case err == nil:
		enabled = flag.Enabled
	case errors.Is(err, content.ErrNotFound):
	default:
		log.Warn("Flag lookup failed, using default", "default", def, "error", err)
		return def
	}
	value := "0"
	if enabled {
		value = "1"
	}
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		log.Warn("Flag cache write failed", "error", err)
	}
	return enabled
}
