// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Site     SiteConfig     `mapstructure:"site"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	DB       DBConfig       `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SiteConfig points at the scraped site.
type SiteConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
}

// BrowserConfig configures the headless rendering subsystem.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless"`
	MaxParallel     int      `mapstructure:"max_parallel"`
	NavTimeoutSec   int      `mapstructure:"nav_timeout_seconds"`
	Locale          string   `mapstructure:"locale"`
	ViewportWidth   int      `mapstructure:"viewport_width"`
	ViewportHeight  int      `mapstructure:"viewport_height"`
	Proxies         []string `mapstructure:"proxies"`
	ThrottleMinMs   int      `mapstructure:"throttle_min_ms"`
	ThrottleMaxMs   int      `mapstructure:"throttle_max_ms"`
}

// WorkerConfig governs job processing.
type WorkerConfig struct {
	Concurrency     int `mapstructure:"concurrency"`
	JobMaxRetries   int `mapstructure:"job_max_retries"`
	JobBackoffSec   int `mapstructure:"job_backoff_seconds"`
	MaxRecoveries   int `mapstructure:"max_recoveries"`
	LockTTLSec      int `mapstructure:"lock_ttl_seconds"`
	LockRefreshSec  int `mapstructure:"lock_refresh_seconds"`
	PopTimeoutSec   int `mapstructure:"pop_timeout_seconds"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig points at the queue broker.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ArchiveConfig sets the snapshot destination.
type ArchiveConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// PubSubConfig holds metadata for job event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STATSHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("site.user_agent", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.max_parallel", 2)
	v.SetDefault("browser.nav_timeout_seconds", 60)
	v.SetDefault("browser.locale", "pt-BR")
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.throttle_min_ms", 500)
	v.SetDefault("browser.throttle_max_ms", 8000)
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.job_max_retries", 3)
	v.SetDefault("worker.job_backoff_seconds", 5)
	v.SetDefault("worker.max_recoveries", 3)
	v.SetDefault("worker.lock_ttl_seconds", 30)
	v.SetDefault("worker.lock_refresh_seconds", 10)
	v.SetDefault("worker.pop_timeout_seconds", 5)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	if c.Browser.MaxParallel <= 0 {
		return fmt.Errorf("browser.max_parallel must be > 0")
	}
	if c.Worker.LockRefreshSec >= c.Worker.LockTTLSec {
		return fmt.Errorf("worker.lock_refresh_seconds must be < worker.lock_ttl_seconds")
	}
	if c.Browser.ThrottleMaxMs < c.Browser.ThrottleMinMs {
		return fmt.Errorf("browser.throttle_max_ms must be >= browser.throttle_min_ms")
	}
	return nil
}

// NavTimeout converts the configured navigation timeout.
func (c BrowserConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// ThrottleMin converts the configured minimum throttle delay.
func (c BrowserConfig) ThrottleMin() time.Duration {
	return time.Duration(c.ThrottleMinMs) * time.Millisecond
}

// ThrottleMax converts the configured maximum throttle delay.
func (c BrowserConfig) ThrottleMax() time.Duration {
	return time.Duration(c.ThrottleMaxMs) * time.Millisecond
}

// LockTTL converts the configured lock TTL.
func (c WorkerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSec) * time.Second
}

// LockRefresh converts the configured lock refresh interval.
func (c WorkerConfig) LockRefresh() time.Duration {
	return time.Duration(c.LockRefreshSec) * time.Second
}

// JobBackoff converts the configured fixed per-job retry backoff.
func (c WorkerConfig) JobBackoff() time.Duration {
	return time.Duration(c.JobBackoffSec) * time.Second
}

// PopTimeout converts the configured queue poll timeout.
func (c WorkerConfig) PopTimeout() time.Duration {
	return time.Duration(c.PopTimeoutSec) * time.Second
}
