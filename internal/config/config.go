// Package config loads service settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all service settings, populated from environment variables.
// Secrets (the Earthdata bearer token and the admin secret) are injected at
// deploy time and never have compiled-in defaults.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Remote archive access.
	ArchiveBaseURL string        `envconfig:"ARCHIVE_BASE_URL" default:"https://gpm1.gesdisc.eosdis.nasa.gov/opendap/GPM_L3/GPM_3IMERGDL.07"`
	EarthdataToken string        `envconfig:"EARTHDATA_TOKEN"`
	DownloadDir    string        `envconfig:"DOWNLOAD_DIR" default:"downloads"`
	OutputDir      string        `envconfig:"OUTPUT_DIR" default:"outputs"`
	FetchTimeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"60s"`
	MaxParallel    int           `envconfig:"MAX_PARALLEL" default:"5"`

	// User store and admin capability tokens.
	UserDBPath    string        `envconfig:"USER_DB_PATH" default:"users.json"`
	AdminSecret   string        `envconfig:"ADMIN_SECRET"`
	AdminTokenTTL time.Duration `envconfig:"ADMIN_TOKEN_TTL" default:"15m"`

	// Optional usage-event publishing. Enabled when brokers are set.
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	UsageTopic   string   `envconfig:"USAGE_TOPIC" default:"imerg-usage-events"`
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.EarthdataToken == "" {
		return nil, errors.New("EARTHDATA_TOKEN is required")
	}
	if cfg.MaxParallel <= 0 {
		return nil, errors.New("MAX_PARALLEL must be positive")
	}
	if cfg.FetchTimeout <= 0 {
		return nil, errors.New("FETCH_TIMEOUT must be positive")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.UsageTopic == "" {
		return nil, errors.New("USAGE_TOPIC is required when KAFKA_BROKERS is set")
	}

	return &cfg, nil
}

// UsageEventsEnabled reports whether the optional Kafka usage-event sink is
// configured.
func (c *Config) UsageEventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
