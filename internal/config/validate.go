package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateParser()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
}

func (c *Config) validateParser() error {
	if c.Parser.ParseTimeout < 0 {
		return errors.New("parser.parse_timeout_ms must not be negative")
	}
	if c.Parser.IdleTimeout < 0 {
		return errors.New("parser.idle_timeout_ms must not be negative")
	}
	if c.Parser.WorkerBinary == "" {
		return errors.New("parser.worker_binary must be set")
	}
	return nil
}
