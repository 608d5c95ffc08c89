package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate applies struct tag rules and cross-field checks.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if _, err := cronParser.Parse(cfg.Maintenance.SnapshotCron); err != nil {
		return fmt.Errorf("invalid snapshot cron %q: %w", cfg.Maintenance.SnapshotCron, err)
	}
	if cfg.Redis.URL == "" && cfg.Redis.Host == "" {
		return fmt.Errorf("either redis url or redis host must be set")
	}
	if cfg.Embedding.Provider == "openai" && cfg.Embedding.APIKey == "" {
		return fmt.Errorf("embedding api key is required for the openai provider")
	}
	if cfg.Postgres.MinConns > cfg.Postgres.MaxConns {
		return fmt.Errorf("postgres min_conns (%d) exceeds max_conns (%d)", cfg.Postgres.MinConns, cfg.Postgres.MaxConns)
	}
	return nil
}

// LLMConfigured reports whether generation credentials are present.
func (c *LLMConfig) Configured() bool {
	return c.APIKey != "" && c.FolderID != ""
}
