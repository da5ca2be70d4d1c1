// Package config loads the YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Logging  LoggingConfig  `yaml:"logging"`
	Feed     FeedConfig     `yaml:"feed"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Dedupe   DedupeConfig   `yaml:"dedupe"`
	Registry RegistryConfig `yaml:"registry"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Sinks    SinksConfig    `yaml:"sinks"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type AppConfig struct {
	InstanceID      string        `yaml:"instance_id"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

type FeedConfig struct {
	URL               string        `yaml:"url"`
	Protocols         []string      `yaml:"protocols"` // empty = all
	States            []string      `yaml:"states"`    // empty = both
	Buffer            int           `yaml:"buffer"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
}

type PipelineConfig struct {
	Workers int `yaml:"workers"`
}

type TrackerConfig struct {
	Shards        int           `yaml:"shards"`
	Retention     time.Duration `yaml:"retention"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	TombstoneTTL  time.Duration `yaml:"tombstone_ttl"`
}

type DedupeConfig struct {
	// Backend is memory or redis. Redis survives restarts.
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
	Redis   RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type RegistryConfig struct {
	PostgresDSN     string        `yaml:"postgres_dsn"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type DispatchConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
	MaxInFlight  int           `yaml:"max_in_flight"`
}

type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	DSN              string        `yaml:"dsn"`
	BatchMaxRows     int           `yaml:"batch_max_rows"`
	BatchMaxInterval time.Duration `yaml:"batch_max_interval"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
}

type SinksConfig struct {
	NATS       NATSConfig       `yaml:"nats"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.ShutdownTimeout <= 0 {
		c.App.ShutdownTimeout = 15 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Dedupe.Backend == "" {
		c.Dedupe.Backend = "memory"
	}
	if c.Registry.RefreshInterval <= 0 {
		c.Registry.RefreshInterval = 1 * time.Minute
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
}

func (c *Config) validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("config: feed.url is required")
	}
	if c.Registry.PostgresDSN == "" {
		return fmt.Errorf("config: registry.postgres_dsn is required")
	}
	switch c.Dedupe.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown dedupe backend %q", c.Dedupe.Backend)
	}
	if c.Dedupe.Backend == "redis" && c.Dedupe.Redis.Addr == "" {
		return fmt.Errorf("config: dedupe.redis.addr is required for the redis backend")
	}
	if c.Sinks.ClickHouse.Enabled && c.Sinks.ClickHouse.DSN == "" {
		return fmt.Errorf("config: sinks.clickhouse.dsn is required when enabled")
	}
	if c.Sinks.NATS.Enabled && c.Sinks.NATS.URL == "" {
		return fmt.Errorf("config: sinks.nats.url is required when enabled")
	}
	return nil
}
