// Package config provides configuration loading and management for brandstudio.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/brandstudio/genai"
	"github.com/c360studio/brandstudio/model"
	"github.com/c360studio/brandstudio/retry"
	"github.com/c360studio/brandstudio/scheduler"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
	BackendSQLite = "sqlite"
)

// Config represents the complete brandstudio configuration.
type Config struct {
	HTTP      HTTPConfig            `yaml:"http"`
	Models    *model.RegistryConfig `yaml:"models,omitempty"`
	Health    model.HealthConfig    `yaml:"health"`
	Retry     retry.Config          `yaml:"retry"`
	Poll      genai.PollConfig      `yaml:"poll"`
	RateLimit RateLimitConfig       `yaml:"rate_limit"`
	Storage   StorageConfig         `yaml:"storage"`
	NATS      NATSConfig            `yaml:"nats"`
	Scheduler SchedulerConfig       `yaml:"scheduler"`
	Import    ImportConfig          `yaml:"import"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// APIKey is the fallback key for endpoints without their own api_key_env.
	// Normally supplied through GEMINI_API_KEY rather than a file.
	APIKey string `yaml:"api_key,omitempty"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

// RateLimitConfig caps outbound generation requests.
type RateLimitConfig struct {
	// PerSecond is the sustained rate; zero disables limiting.
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// StorageConfig selects where state and call records live.
type StorageConfig struct {
	// Backend is memory, nats or sqlite.
	Backend string `yaml:"backend"`
	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// NATSConfig configures the NATS connection used by the nats backend.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// SchedulerConfig configures the monthly catalogue job.
type SchedulerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// ImportConfig configures website brand import.
type ImportConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxBytes  int64         `yaml:"max_bytes"`
	UserAgent string        `yaml:"user_agent"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:   ":8080",
			Prefix: "api",
		},
		Health:    model.DefaultHealthConfig(),
		Retry:     retry.DefaultConfig(),
		Poll:      genai.DefaultPollConfig(),
		RateLimit: RateLimitConfig{PerSecond: 5, Burst: 5},
		Storage: StorageConfig{
			Backend: BackendMemory,
			Path:    "brandstudio.db",
		},
		NATS: NATSConfig{
			URL: "nats://127.0.0.1:4222",
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Schedule: scheduler.DefaultSchedule,
		},
		Import: ImportConfig{
			Enabled:   true,
			Timeout:   30 * time.Second,
			MaxBytes:  5 << 20,
			UserAgent: "brandstudio-import/1.0",
		},
		LogLevel: "info",
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.Jitter < 0 || c.Retry.MaxDelay < 0 {
		errs = append(errs, errors.New("retry delays must not be negative"))
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, errors.New("poll.interval must be positive"))
	}
	if c.Poll.Timeout < c.Poll.Interval {
		errs = append(errs, errors.New("poll.timeout must be at least poll.interval"))
	}
	if c.RateLimit.PerSecond < 0 {
		errs = append(errs, errors.New("rate_limit.per_second must not be negative"))
	}
	if c.Health.FailureThreshold < 1 {
		errs = append(errs, errors.New("health.failure_threshold must be at least 1"))
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for sqlite"))
		}
	case BackendNATS:
		if c.NATS.URL == "" {
			errs = append(errs, errors.New("nats.url is required for the nats backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	if c.Models != nil {
		merged := model.NewDefaultRegistry().ToConfig()
		mergeModels(merged, c.Models)
		if _, err := model.FromConfig(merged); err != nil {
			errs = append(errs, fmt.Errorf("models: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Registry builds the model registry: the defaults overlaid with Models.
func (c *Config) Registry() *model.Registry {
	reg := model.NewDefaultRegistry()
	if c.Models != nil {
		reg.MergeFromConfig(c.Models)
	}
	reg.SetHealthConfig(c.Health)
	return reg
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := config.overlay(path); err != nil {
		return nil, err
	}
	return config, nil
}

// overlay decodes a YAML file over c. Keys absent from the file keep their
// current values.
func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one. Non-zero values in other win.
// Booleans cannot be told apart from unset and are left alone.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.HTTP.Addr != "" {
		c.HTTP.Addr = other.HTTP.Addr
	}
	if other.HTTP.Prefix != "" {
		c.HTTP.Prefix = other.HTTP.Prefix
	}

	if other.Models != nil {
		if c.Models == nil {
			c.Models = other.Models
		} else {
			mergeModels(c.Models, other.Models)
		}
	}

	if other.Health.FailureThreshold != 0 {
		c.Health.FailureThreshold = other.Health.FailureThreshold
	}
	if other.Health.RecoveryTimeout != 0 {
		c.Health.RecoveryTimeout = other.Health.RecoveryTimeout
	}

	if other.Retry.MaxAttempts != 0 {
		c.Retry.MaxAttempts = other.Retry.MaxAttempts
	}
	if other.Retry.BaseDelay != 0 {
		c.Retry.BaseDelay = other.Retry.BaseDelay
	}
	if other.Retry.Jitter != 0 {
		c.Retry.Jitter = other.Retry.Jitter
	}
	if other.Retry.MaxDelay != 0 {
		c.Retry.MaxDelay = other.Retry.MaxDelay
	}

	if other.Poll.Interval != 0 {
		c.Poll.Interval = other.Poll.Interval
	}
	if other.Poll.Timeout != 0 {
		c.Poll.Timeout = other.Poll.Timeout
	}

	if other.RateLimit.PerSecond != 0 {
		c.RateLimit.PerSecond = other.RateLimit.PerSecond
	}
	if other.RateLimit.Burst != 0 {
		c.RateLimit.Burst = other.RateLimit.Burst
	}

	if other.Storage.Backend != "" {
		c.Storage.Backend = other.Storage.Backend
	}
	if other.Storage.Path != "" {
		c.Storage.Path = other.Storage.Path
	}
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	if other.Scheduler.Schedule != "" {
		c.Scheduler.Schedule = other.Scheduler.Schedule
	}
	if other.Import.Timeout != 0 {
		c.Import.Timeout = other.Import.Timeout
	}
	if other.Import.MaxBytes != 0 {
		c.Import.MaxBytes = other.Import.MaxBytes
	}
	if other.Import.UserAgent != "" {
		c.Import.UserAgent = other.Import.UserAgent
	}

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.APIKey != "" {
		c.APIKey = other.APIKey
	}
}

func mergeModels(dst, src *model.RegistryConfig) {
	if dst.Kinds == nil {
		dst.Kinds = make(map[string]*model.KindConfig)
	}
	for k, v := range src.Kinds {
		dst.Kinds[k] = v
	}
	if dst.Endpoints == nil {
		dst.Endpoints = make(map[string]*model.EndpointConfig)
	}
	for k, v := range src.Endpoints {
		dst.Endpoints[k] = v
	}
	if src.Defaults != nil {
		dst.Defaults = src.Defaults
	}
}
