package config

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// NewLogger builds a logrus logger writing to w with the configured level
// and formatter.
func (c LogConfig) NewLogger(w io.Writer) (*log.Logger, error) {
	logger := log.New()
	logger.SetOutput(w)
	if err := c.apply(logger); err != nil {
		return nil, err
	}
	return logger, nil
}

// ConfigureStandardLogger applies the settings to logrus' standard logger.
func (c LogConfig) ConfigureStandardLogger() error {
	return c.apply(log.StandardLogger())
}

func (c LogConfig) apply(logger *log.Logger) error {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(level)

	switch c.Format {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("log format %q: want text or json", c.Format)
	}
	return nil
}
