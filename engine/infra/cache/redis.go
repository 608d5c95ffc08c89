package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Druk83/TrainingGround/pkg/logger"
)

type Redis struct {
	client   redis.UniversalClient
	embedded *miniredis.Miniredis
	config   *Config
	once     sync.Once
	log      logger.Logger
}

const fallbackRedisPingTimeout = 10 * time.Second

// NewRedis connects to Redis, or starts an in-process server when the mode is embedded.
func NewRedis(ctx context.Context, cfg *Config) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	log := logger.FromContext(ctx).With("component", "infra_redis")
	var embedded *miniredis.Miniredis
	if cfg.Mode == ModeEmbedded {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("starting embedded redis: %w", err)
		}
		embedded = mr
		cfg = &Config{Mode: ModeEmbedded, URL: "redis://" + mr.Addr(), PingTimeout: cfg.PingTimeout}
	}
	client, err := buildRedisClient(cfg)
	if err != nil {
		closeEmbedded(embedded)
		return nil, err
	}
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = fallbackRedisPingTimeout
	}
	if err := pingRedis(ctx, client, timeout); err != nil {
		_ = client.Close()
		closeEmbedded(embedded)
		return nil, err
	}
	log.Info("Redis connection established", "mode", cfg.Mode, "host", cfg.Host, "port", cfg.Port, "db", cfg.DB)
	return &Redis{client: client, embedded: embedded, config: cfg, log: log}, nil
}

// NewFromClient wraps an existing client, mainly for tests.
func NewFromClient(client redis.UniversalClient) *Redis {
	return &Redis{client: client, config: &Config{}, log: logger.NewForTests()}
}

func buildRedisClient(cfg *Config) (redis.UniversalClient, error) {
	if cfg.URL != "" {
		opt, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing Redis URL: %w", err)
		}
		applyConfigToOptions(opt, cfg)
		return redis.NewClient(opt), nil
	}
	opt := &redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	applyConfigToOptions(opt, cfg)
	return redis.NewClient(opt), nil
}

func applyConfigToOptions(opt *redis.Options, cfg *Config) {
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
}

func pingRedis(ctx context.Context, client redis.UniversalClient, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("pinging Redis server (timeout=%s): %w", timeout, err)
	}
	return nil
}

func closeEmbedded(mr *miniredis.Miniredis) {
	if mr != nil {
		mr.Close()
	}
}

// Client returns the underlying Redis client.
func (r *Redis) Client() redis.UniversalClient {
	return r.client
}

// Close shuts down the connection once; later calls are no-ops.
func (r *Redis) Close() error {
	var err error
	r.once.Do(func() {
		err = r.client.Close()
		closeEmbedded(r.embedded)
		if err != nil {
			r.log.Error("Redis connection close failed", "error", err)
			return
		}
		r.log.Debug("Redis connection closed")
	})
	return err
}

// HealthCheck verifies a write/read roundtrip.
func (r *Redis) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	const testKey, testValue = "health_check_test", "ok"
	if err := r.client.Set(ctx, testKey, testValue, 10*time.Second).Err(); err != nil {
		return fmt.Errorf("set operation failed: %w", err)
	}
	result, err := r.client.Get(ctx, testKey).Result()
	if err != nil {
		return fmt.Errorf("get operation failed: %w", err)
	}
	if result != testValue {
		return fmt.Errorf("get result mismatch: expected %s, got %s", testValue, result)
	}
	if err := r.client.Del(ctx, testKey).Err(); err != nil {
		r.log.Debug("failed to clean up test key", "key", testKey, "error", err)
	}
	return nil
}

// IsNil reports whether err is the go-redis missing key sentinel.
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
