package cache

import (
	"time"

	"github.com/Druk83/TrainingGround/pkg/config"
)

const (
	ModeExternal = "external"
	ModeEmbedded = "embedded"
)

type Config struct {
	Mode        string
	URL         string
	Host        string
	Port        string
	Password    string
	DB          int
	PoolSize    int
	PingTimeout time.Duration
}

// FromAppConfig builds the connection settings from the service configuration.
func FromAppConfig(cfg *config.Config) *Config {
	r := cfg.Redis
	return &Config{
		Mode:        r.Mode,
		URL:         r.URL,
		Host:        r.Host,
		Port:        r.Port,
		Password:    r.Password,
		DB:          r.DB,
		PoolSize:    r.PoolSize,
		PingTimeout: r.PingTimeout,
	}
}
