package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version  int            `yaml:"version"`
	Database DatabaseConfig `yaml:"database"`
	Loader   LoaderConfig   `yaml:"loader"`
	Server   ServerConfig   `yaml:"server"`
	Watch    WatchConfig    `yaml:"watch"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig holds catalog database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoaderConfig holds file loading defaults
type LoaderConfig struct {
	// CastToElectronDiffraction casts files without a known diffraction
	// signal type to electron_diffraction. nil means true.
	CastToElectronDiffraction *bool     `yaml:"cast_to_electron_diffraction,omitempty"`
	MIB                       MIBConfig `yaml:"mib"`
}

// MIBConfig holds Merlin flyback correction defaults
type MIBConfig struct {
	SumLength    int   `yaml:"sum_length"`
	FlipPatterns *bool `yaml:"flip_patterns,omitempty"` // nil = true
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// WatchConfig holds directory watcher settings
type WatchConfig struct {
	Dir      string   `yaml:"dir,omitempty"` // empty disables watching
	Debounce Duration `yaml:"debounce"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Cast reports whether untyped files are cast to electron_diffraction.
func (c LoaderConfig) Cast() bool {
	return c.CastToElectronDiffraction == nil || *c.CastToElectronDiffraction
}

// Flip reports whether MIB patterns are flipped vertically.
func (c MIBConfig) Flip() bool {
	return c.FlipPatterns == nil || *c.FlipPatterns
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
