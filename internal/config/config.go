// Package config loads the engine's YAML configuration. Grounded on
// sawpanic-cryptorun's internal/config/providers.go read-unmarshal-validate
// shape and internal/scheduler/scheduler.go's loadConfig.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the engine's full runtime configuration.
type Config struct {
	Log       LogConfig                      `yaml:"log"`
	Postgres  PostgresConfig                 `yaml:"postgres"`
	Redis     RedisConfig                    `yaml:"redis"`
	HTTP      HTTPConfig                     `yaml:"http"`
	Venues    map[string]VenueConfig         `yaml:"venues"`
	Scheduler SchedulerConfig                `yaml:"scheduler"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// PostgresConfig is the sync engine's storage backend.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn" env:"PG_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// RedisConfig backs the scheduler's cross-instance distributed lock.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
}

// HTTPConfig is the thin read-only query surface (out of deep-feature
// scope per spec.md Non-goals, but still ambiently wired per SPEC_FULL.md).
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// VenueConfig overrides a single venue's REST base URL and cron schedules.
type VenueConfig struct {
	BaseURL     string `yaml:"base_url"`
	HistoryCron string `yaml:"history_cron"`
	OnlineCron  string `yaml:"online_cron"`
}

// SchedulerConfig holds the default cron expressions (per spec.md §6.2,
// overridable per-venue above) and the distributed-lock lease duration.
type SchedulerConfig struct {
	DefaultHistoryCron string        `yaml:"default_history_cron"`
	DefaultOnlineCron  string        `yaml:"default_online_cron"`
	LockLeaseDuration  time.Duration `yaml:"lock_lease_duration"`
}

// DefaultConfig returns the engine's out-of-the-box defaults, matching
// spec.md §6.2's cron expressions exactly.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Postgres: PostgresConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			QueryTimeout:    30 * time.Second,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		HTTP:  HTTPConfig{Addr: ":8080"},
		Scheduler: SchedulerConfig{
			DefaultHistoryCron: "*/15 * * * * *",
			DefaultOnlineCron:  "*/10 * * * * *",
			LockLeaseDuration:  20 * time.Second,
		},
	}
}

// Load reads and parses the YAML file at path over DefaultConfig, then
// validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return &cfg, nil
}

// Validate checks the fields the engine cannot run without.
func (c *Config) Validate() error {
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	if c.Scheduler.DefaultHistoryCron == "" || c.Scheduler.DefaultOnlineCron == "" {
		return fmt.Errorf("scheduler default cron expressions are required")
	}
	return nil
}

// HistoryCronFor returns venue's history cron override, falling back to the
// scheduler default.
func (c *Config) HistoryCronFor(venue string) string {
	if v, ok := c.Venues[venue]; ok && v.HistoryCron != "" {
		return v.HistoryCron
	}
	return c.Scheduler.DefaultHistoryCron
}

// OnlineCronFor returns venue's online cron override, falling back to the
// scheduler default.
func (c *Config) OnlineCronFor(venue string) string {
	if v, ok := c.Venues[venue]; ok && v.OnlineCron != "" {
		return v.OnlineCron
	}
	return c.Scheduler.DefaultOnlineCron
}

// BaseURLFor returns venue's REST base URL override, or "" to let the
// adapter fall back to its own production default.
func (c *Config) BaseURLFor(venue string) string {
	if v, ok := c.Venues[venue]; ok {
		return v.BaseURL
	}
	return ""
}
