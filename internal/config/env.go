package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override file values
const (
	EnvDatabasePath = "DIFFKIT_DATABASE_PATH"
	EnvLogLevel     = "DIFFKIT_LOG_LEVEL"
	EnvAddr         = "DIFFKIT_ADDR"
	EnvWatchDir     = "DIFFKIT_WATCH_DIR"

	// DotEnvFile is read from the working directory when present
	DotEnvFile = ".env"
)

// LoadDotEnv loads DotEnvFile into the process environment. Variables that
// are already set keep their values. A missing file is not an error.
func LoadDotEnv() error {
	if !fileExists(DotEnvFile) {
		return nil
	}
	if err := godotenv.Load(DotEnvFile); err != nil {
		return fmt.Errorf("load %s: %w", DotEnvFile, err)
	}
	return nil
}

// ApplyEnv overrides config values from DIFFKIT_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDatabasePath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvWatchDir); v != "" {
		c.Watch.Dir = v
	}
}
