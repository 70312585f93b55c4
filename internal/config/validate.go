package config

import (
	"errors"
	"fmt"
	"strings"

	"subscout/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validatePool(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateEngine() error {
	if len(c.Engine.Providers) == 0 {
		return errors.New("engine.providers must list at least one provider")
	}
	seen := make(map[string]struct{}, len(c.Engine.Providers))
	for _, name := range c.Engine.Providers {
		name = strings.TrimSpace(name)
		if name == "" {
			return errors.New("engine.providers contains an empty name")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("engine.providers lists %q twice", name)
		}
		seen[name] = struct{}{}
	}
	if len(c.Engine.Languages) == 0 {
		return errors.New("engine.languages must list at least one language")
	}
	if _, err := language.ParseList(c.Engine.Languages); err != nil {
		return fmt.Errorf("engine.languages: %w", err)
	}
	if c.Engine.MinScore < 0 {
		return errors.New("engine.min_score must not be negative")
	}
	if c.Engine.VideoConcurrency < 0 {
		return errors.New("engine.video_concurrency must not be negative")
	}
	if c.Engine.VideoTimeoutSeconds < 0 {
		return errors.New("engine.video_timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validatePool() error {
	if c.Pool.MaxAttempts < 1 {
		return errors.New("pool.max_attempts must be at least 1")
	}
	if c.Pool.RetryDelaySeconds < 0 {
		return errors.New("pool.retry_delay_seconds must not be negative")
	}
	if c.Pool.QueryTimeoutSeconds < 1 {
		return errors.New("pool.query_timeout_seconds must be at least 1")
	}
	return nil
}

// RequestedLanguages parses engine.languages into language values, preserving
// the configured priority order.
func (c *Config) RequestedLanguages() ([]language.Language, error) {
	return language.ParseList(c.Engine.Languages)
}
