package explanation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "explanation:cache:"

// CacheKey returns the store key for a task.
func CacheKey(taskID string) string {
	return cacheKeyPrefix + taskID
}

type cacheEntry struct {
	Fingerprint string    `json:"fingerprint"`
	Response    *Response `json:"response"`
}

// Cache stores one response per task guarded by the request fingerprint.
type Cache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewCache(client redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached response only when it was stored for an identical request.
// Mismatched, missing or unreadable entries are reported as absent.
func (c *Cache) Get(ctx context.Context, req *Request) (*Response, bool, error) {
	raw, err := c.client.Get(ctx, CacheKey(req.TaskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read explanation cache: %w", err)
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, nil
	}
	if entry.Response == nil || entry.Fingerprint != Fingerprint(req) {
		return nil, false, nil
	}
	if entry.Response.RuleRefs == nil {
		entry.Response.RuleRefs = []string{}
	}
	return entry.Response, true, nil
}

// Set overwrites the entry for the request task with an expiry.
func (c *Cache) Set(ctx context.Context, req *Request, resp *Response) error {
	data, err := json.Marshal(cacheEntry{Fingerprint: Fingerprint(req), Response: resp})
	if err != nil {
		return fmt.Errorf("encode explanation cache entry: %w", err)
	}
	if err := c.client.Set(ctx, CacheKey(req.TaskID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("write explanation cache: %w", err)
	}
	return nil
}
