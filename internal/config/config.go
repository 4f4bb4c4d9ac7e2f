// Package config loads the gateway settings from EVENTS_* environment
// variables (and bound CLI flags) and the per-source YAML wire file.
package config

import (
	"fmt"
	"time"

	"github.com/Sternrassler/event-aggregator/pkg/logging"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "EVENTS"

// Config holds the process-wide settings.
type Config struct {
	Port int

	Redis RedisConfig
	Log   LogConfig

	// CountCacheTTL is how long per-source totals are cached.
	CountCacheTTL time.Duration

	// ItemCacheTTL is how long single-item lookups are cached. Zero disables it.
	ItemCacheTTL time.Duration

	// FetchTimeout bounds every upstream probe and fetch.
	FetchTimeout time.Duration

	DefaultLimit int
	MaxLimit     int

	// AllowPartial serves degraded pages when some sources fail.
	AllowPartial bool

	SourcesFile string
	UserAgent   string
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level  string
	Pretty bool
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("count_cache_ttl", 5*time.Minute)
	v.SetDefault("item_cache_ttl", time.Minute)
	v.SetDefault("fetch_timeout", 10*time.Second)
	v.SetDefault("default_limit", 20)
	v.SetDefault("max_limit", 100)
	v.SetDefault("allow_partial", false)
	v.SetDefault("sources_file", "sources.yaml")
	v.SetDefault("user_agent", "event-aggregator/0.1.0")
}

// NewViper returns a viper instance reading EVENTS_* variables with defaults.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	return FromViper(NewViper())
}

// FromViper builds and validates a Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port: v.GetInt("port"),
		Redis: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log_level"),
			Pretty: v.GetBool("log_pretty"),
		},
		CountCacheTTL: v.GetDuration("count_cache_ttl"),
		ItemCacheTTL:  v.GetDuration("item_cache_ttl"),
		FetchTimeout:  v.GetDuration("fetch_timeout"),
		DefaultLimit:  v.GetInt("default_limit"),
		MaxLimit:      v.GetInt("max_limit"),
		AllowPartial:  v.GetBool("allow_partial"),
		SourcesFile:   v.GetString("sources_file"),
		UserAgent:     v.GetString("user_agent"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("port must be in 1..65535 (got %d)", c.Port)
	case c.Redis.Addr == "":
		return fmt.Errorf("redis address is required")
	case c.Redis.DB < 0:
		return fmt.Errorf("redis db must be >= 0 (got %d)", c.Redis.DB)
	case c.CountCacheTTL < 0:
		return fmt.Errorf("count cache ttl must be >= 0 (got %s)", c.CountCacheTTL)
	case c.ItemCacheTTL < 0:
		return fmt.Errorf("item cache ttl must be >= 0 (got %s)", c.ItemCacheTTL)
	case c.FetchTimeout < 0:
		return fmt.Errorf("fetch timeout must be >= 0 (got %s)", c.FetchTimeout)
	case c.DefaultLimit <= 0:
		return fmt.Errorf("default limit must be > 0 (got %d)", c.DefaultLimit)
	case c.MaxLimit < c.DefaultLimit:
		return fmt.Errorf("max limit %d is below default limit %d", c.MaxLimit, c.DefaultLimit)
	case c.SourcesFile == "":
		return fmt.Errorf("sources file is required")
	case c.UserAgent == "":
		return fmt.Errorf("user-agent is required")
	}
	if err := logging.ValidateLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
