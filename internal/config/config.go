// Package config provides configuration for the tickersync components,
// loaded with the priority order: environment variables over config file
// over defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/tkarsten/tickersync/internal/models"
)

// Config is the complete application configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Remote  RemoteConfig  `yaml:"remote"`
	Sync    SyncConfig    `yaml:"sync"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig configures the local cache store.
type StorageConfig struct {
	// Path is the SQLite database file. ":memory:" selects the in-memory
	// backend.
	Path string `yaml:"path"`
}

// RemoteConfig configures the Tiingo client.
type RemoteConfig struct {
	// APIKey authenticates against Tiingo. Usually set via TIINGO_API_KEY.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the API endpoint. Empty means the public API.
	BaseURL string `yaml:"base_url"`

	// RateLimit is the sustained requests-per-second budget.
	RateLimit int `yaml:"rate_limit"`
}

// SyncConfig configures synchronization behavior.
type SyncConfig struct {
	// Frequency is the sampling frequency: daily, weekly, or monthly.
	Frequency string `yaml:"frequency"`

	// RetentionDays drops cached bars older than this many days after a
	// successful sync. Zero disables retention cleanup.
	RetentionDays int `yaml:"retention_days"`
}

// WatchConfig configures the periodic re-sync scheduler.
type WatchConfig struct {
	// Cron is the schedule expression, e.g. "0 18 * * 1-5".
	Cron string `yaml:"cron"`

	// Tickers are the series to keep synchronized.
	Tickers []string `yaml:"tickers"`

	// LookbackDays is how far back each scheduled sync requests.
	LookbackDays int `yaml:"lookback_days"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // text, json
	Output     string `yaml:"output"`      // stdout, stderr, file
	FilePath   string `yaml:"file_path"`   // when output is file
	MaxSizeMB  int    `yaml:"max_size_mb"` // rotation threshold
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Path: "data/tickersync.db"},
		Remote:  RemoteConfig{RateLimit: 1},
		Sync:    SyncConfig{Frequency: string(models.FrequencyDaily), RetentionDays: 0},
		Watch:   WatchConfig{Cron: "0 22 * * 1-5", LookbackDays: 7},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides, then validates the result. A missing file at the
// default path is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults plus environment only.
		case err != nil:
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file and default values from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TIINGO_API_KEY"); v != "" {
		cfg.Remote.APIKey = v
	}
	if v := os.Getenv("TICKERSYNC_DB"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("TICKERSYNC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TICKERSYNC_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("TICKERSYNC_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.RetentionDays = n
		}
	}
	if v := os.Getenv("TICKERSYNC_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Remote.RateLimit = n
		}
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path cannot be empty")
	}
	if _, err := models.ParseFrequency(c.Sync.Frequency); err != nil {
		return fmt.Errorf("sync.frequency: %w", err)
	}
	if c.Remote.RateLimit <= 0 {
		return fmt.Errorf("remote.rate_limit must be positive")
	}
	if c.Sync.RetentionDays < 0 {
		return fmt.Errorf("sync.retention_days cannot be negative")
	}
	if c.Watch.LookbackDays <= 0 {
		return fmt.Errorf("watch.lookback_days must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}
	switch c.Logging.Output {
	case "stdout", "stderr":
	case "file":
		if c.Logging.FilePath == "" {
			return fmt.Errorf("logging.file_path is required when logging.output is file")
		}
	default:
		return fmt.Errorf("logging.output must be stdout, stderr, or file")
	}
	return nil
}
