package ratelimit

import (
	"fmt"
	"time"

	"github.com/ulule/limiter/v3"

	"github.com/Druk83/TrainingGround/pkg/config"
)

// Config represents rate limiting configuration
type Config struct {
	Limit  int64
	Period time.Duration
	// Prefix namespaces the counters; keys are stored as <prefix>:<client address>.
	Prefix   string
	MaxRetry int
	// ExcludedPaths are never limited.
	ExcludedPaths []string
	// DisableHeaders suppresses the X-RateLimit-* response headers.
	DisableHeaders bool
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() *Config {
	return &Config{
		Limit:         120,
		Period:        time.Minute,
		Prefix:        "ratelimit",
		MaxRetry:      3,
		ExcludedPaths: []string{"/health", "/metrics"},
	}
}

// FromAppConfig maps the service configuration onto the limiter settings.
func FromAppConfig(cfg *config.Config) *Config {
	out := DefaultConfig()
	rl := cfg.RateLimit
	out.Limit = rl.Limit
	out.Period = rl.Window
	if rl.Prefix != "" {
		out.Prefix = rl.Prefix
	}
	if rl.Excluded != nil {
		out.ExcludedPaths = rl.Excluded
	}
	return out
}

// ToLimiterRate converts the configuration to limiter.Rate
func (c *Config) ToLimiterRate() limiter.Rate {
	return limiter.Rate{Period: c.Period, Limit: c.Limit}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.Period <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	return nil
}
