// Package config resolves the application configuration from a YAML file,
// environment variables and defaults. The core packages consume the resolved
// values only; nothing outside this package reads configuration sources.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved application configuration.
type Config struct {
	Model   ModelConfig   `mapstructure:"model"`
	Device  DeviceConfig  `mapstructure:"device"`
	Task    TaskConfig    `mapstructure:"task"`
	Planner PlannerConfig `mapstructure:"planner"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Log     LogConfig     `mapstructure:"log"`
}

// ModelConfig selects the inference backend.
type ModelConfig struct {
	Name        string   `mapstructure:"name"`     // e.g. "gpt-4o-mini" or "gemma3:12b"
	Provider    string   `mapstructure:"provider"` // openai | ollama | gollm; empty infers from the catalog
	BaseURL     string   `mapstructure:"base_url"`
	Temperature *float64 `mapstructure:"temperature"`
	TimeoutSec  int      `mapstructure:"timeout_sec"` // per model request
}

// DeviceConfig locates the Android device.
type DeviceConfig struct {
	ADBPath  string `mapstructure:"adb_path"`
	Serial   string `mapstructure:"serial"`
	AgentURL string `mapstructure:"agent_url"` // on-device automation agent; empty uses localhost forwarding
}

// TaskConfig bounds a task run.
type TaskConfig struct {
	MaxIterations int `mapstructure:"max_iterations"`
	MaxWallSec    int `mapstructure:"max_wall_sec"`
	RetryBudget   int `mapstructure:"retry_budget"`
}

// PlannerConfig controls the optional up-front planning step.
type PlannerConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// CacheConfig controls the on-disk model response cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	TTLSec  int    `mapstructure:"ttl_sec"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // json | text
}

// MaxWallTime returns the task wall-time limit as a duration.
func (t TaskConfig) MaxWallTime() time.Duration {
	return time.Duration(t.MaxWallSec) * time.Second
}

// TTL returns the cache entry lifetime as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

// Timeout returns the per-request model timeout as a duration.
func (m ModelConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSec) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model.name", "gpt-4o-mini")
	v.SetDefault("model.provider", "")
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.timeout_sec", 120)
	v.SetDefault("device.adb_path", "adb")
	// Keys without a meaningful default still need one registered so
	// environment overrides are visible to Unmarshal.
	v.SetDefault("device.serial", "")
	v.SetDefault("device.agent_url", "")
	v.SetDefault("task.max_iterations", 25)
	v.SetDefault("task.max_wall_sec", 600)
	v.SetDefault("task.retry_budget", 2)
	v.SetDefault("planner.enabled", false)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.path", "droidpilot_cache.db")
	v.SetDefault("cache.ttl_sec", 3600)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from the given file path (optional), the
// environment (DROIDPILOT_ prefix, dots become underscores) and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DROIDPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Task.MaxIterations <= 0 {
		return fmt.Errorf("task.max_iterations must be positive")
	}
	if c.Task.MaxWallSec <= 0 {
		return fmt.Errorf("task.max_wall_sec must be positive")
	}
	if c.Task.RetryBudget < 0 {
		return fmt.Errorf("task.retry_budget cannot be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}
