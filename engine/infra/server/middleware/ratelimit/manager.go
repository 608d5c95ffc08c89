package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/Druk83/TrainingGround/pkg/logger"
)

const blockedDetail = "Too many requests"

// Recorder counts blocked requests.
type Recorder interface {
	RateLimited(ctx context.Context, route string)
}

// Manager enforces a fixed-window request budget per client address.
type Manager struct {
	config   *Config
	limiter  *limiter.Limiter
	recorder Recorder
	now      func() time.Time
}

// NewManager builds a limiter backed by Redis, or by an in-process store when client is nil.
func NewManager(cfg *Config, client redis.UniversalClient) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := limiter.StoreOptions{Prefix: cfg.Prefix, MaxRetry: cfg.MaxRetry}
	var store limiter.Store
	if client != nil {
		s, err := sredis.NewStoreWithOptions(client, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
		}
		store = s
	} else {
		opts.CleanUpInterval = 30 * time.Second
		store = memory.NewStoreWithOptions(opts)
	}
	return &Manager{
		config:  cfg,
		limiter: limiter.New(store, cfg.ToLimiterRate()),
		now:     time.Now,
	}, nil
}

// WithRecorder attaches a counter for rejected requests.
func (m *Manager) WithRecorder(r Recorder) *Manager {
	m.recorder = r
	return m
}

// Middleware rejects requests over budget with 429. Store failures let the request through.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.excluded(c.Request.URL.Path) {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		lctx, err := m.limiter.Get(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("Rate limit check failed, allowing request", "error", err)
			c.Next()
			return
		}
		if !m.config.DisableHeaders {
			h := c.Writer.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))
		}
		if !lctx.Reached {
			c.Next()
			return
		}
		retryAfter := max(lctx.Reset-m.now().Unix(), 1)
		c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		if m.recorder != nil {
			m.recorder.RateLimited(ctx, routeOf(c))
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"detail":      blockedDetail,
			"retry_after": retryAfter,
		})
	}
}

func (m *Manager) excluded(path string) bool {
	return slices.ContainsFunc(m.config.ExcludedPaths, func(p string) bool {
		return path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/")
	})
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}
