// Package config provides configuration management for diffkit.
//
// Config file locations (priority order):
//  1. $DIFFKIT_CONFIG
//  2. ./diffkit.yaml
//  3. $XDG_CONFIG_HOME/diffkit/config.yaml
//  4. ~/.config/diffkit/config.yaml
//  5. /etc/diffkit/config.yaml
//
// A .env file in the working directory is loaded first, and DIFFKIT_*
// environment variables override values from the file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultDatabasePath = "./diffkit.db"
	defaultAddr         = ":3000"
	defaultSumLength    = 10
	defaultDebounce     = 500 * time.Millisecond
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
)

// Load finds and loads the config file, or returns defaults if none found.
// Environment overrides are applied in both cases.
func Load() (*Config, string, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, "", err
	}

	path := FindConfigPath()

	var cfg *Config
	if path == "" {
		// No config found - start from defaults
		cfg = DefaultConfig()
	} else {
		var err error
		if cfg, _, err = LoadFromPath(path); err != nil {
			return nil, path, err
		}
	}

	cfg.ApplyEnv()
	return cfg, path, nil
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Database.Path == "" {
		c.Database.Path = defaultDatabasePath
	}
	if c.Loader.MIB.SumLength <= 0 {
		c.Loader.MIB.SumLength = defaultSumLength
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = Duration(defaultDebounce)
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = defaultLogFormat
	}
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Database: %s, Server: %s\n", c.Database.Path, c.Server.Addr)
	summary += fmt.Sprintf("Loader: cast=%t, mib sum_length=%d flip=%t\n",
		c.Loader.Cast(), c.Loader.MIB.SumLength, c.Loader.MIB.Flip())
	if c.Watch.Dir != "" {
		summary += fmt.Sprintf("Watching: %s (debounce %s)\n", c.Watch.Dir, c.Watch.Debounce.Duration())
	}
	summary += fmt.Sprintf("Log: %s/%s", c.Log.Level, c.Log.Format)

	return summary
}
