// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete service configuration.
type Config struct {
	// HTTP listener settings
	HTTP struct {
		Address string `yaml:"address"`
		Port    string `yaml:"port"`
	} `yaml:"http"`

	// Downloads settings
	Downloads struct {
		Dir         string `yaml:"dir"`
		Concurrency int    `yaml:"concurrency"`
	} `yaml:"downloads"`

	// Journal database settings
	DB struct {
		Path string `yaml:"path"`
	} `yaml:"db"`

	// Network timeouts
	Fetch struct {
		Timeout      time.Duration `yaml:"timeout"`
		ProbeTimeout time.Duration `yaml:"probe_timeout"`
	} `yaml:"fetch"`

	// Logging
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	cfg := &Config{}

	cfg.HTTP.Address = "127.0.0.1"
	cfg.HTTP.Port = "8750"

	cfg.Downloads.Dir = "downloads"
	cfg.Downloads.Concurrency = 6

	cfg.DB.Path = "umd-host.db"

	cfg.Fetch.Timeout = 30 * time.Second
	cfg.Fetch.ProbeTimeout = 15 * time.Second

	cfg.Log.Level = "INFO"

	return cfg
}

// LoadFromFile loads configuration from a YAML file on top of defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Load loads configuration from the file named by UMD_CONFIG_FILE
// (default config.yaml, missing file means defaults), applies
// environment variable overrides and validates the result.
func Load() (*Config, error) {
	configPath := os.Getenv("UMD_CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := Default()
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = LoadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("UMD_HTTP_ADDRESS"); val != "" {
		cfg.HTTP.Address = val
	}
	if val := os.Getenv("UMD_HTTP_PORT"); val != "" {
		cfg.HTTP.Port = val
	}
	if val := os.Getenv("UMD_DOWNLOADS_DIR"); val != "" {
		cfg.Downloads.Dir = val
	}
	if val := os.Getenv("UMD_DOWNLOAD_CONCURRENCY"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid UMD_DOWNLOAD_CONCURRENCY: %w", err)
		}
		cfg.Downloads.Concurrency = n
	}
	if val := os.Getenv("UMD_DB_PATH"); val != "" {
		cfg.DB.Path = val
	}
	if val := os.Getenv("UMD_FETCH_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid UMD_FETCH_TIMEOUT (expected duration like '30s'): %w", err)
		}
		cfg.Fetch.Timeout = d
	}
	if val := os.Getenv("UMD_PROBE_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid UMD_PROBE_TIMEOUT (expected duration like '15s'): %w", err)
		}
		cfg.Fetch.ProbeTimeout = d
	}
	if val := os.Getenv("UMD_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	return nil
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.HTTP.Address == "" {
		errs = append(errs, "HTTP address is required")
	}
	if c.HTTP.Port == "" {
		errs = append(errs, "HTTP port is required")
	}
	if c.Downloads.Dir == "" {
		errs = append(errs, "Downloads directory is required")
	}
	if c.Downloads.Concurrency <= 0 {
		errs = append(errs, "Download concurrency must be positive")
	}
	if c.DB.Path == "" {
		errs = append(errs, "Database path is required")
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, "Fetch timeout must be positive")
	}
	if c.Fetch.ProbeTimeout <= 0 {
		errs = append(errs, "Probe timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogLevel converts the configured level name to a slog.Level,
// defaulting to info on unknown values.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToUpper(c.Log.Level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AbsDownloadsDir returns the downloads directory as an absolute path.
func (c *Config) AbsDownloadsDir() (string, error) {
	if filepath.IsAbs(c.Downloads.Dir) {
		return c.Downloads.Dir, nil
	}
	abs, err := filepath.Abs(c.Downloads.Dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve downloads directory: %w", err)
	}
	return abs, nil
}
