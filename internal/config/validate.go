package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRealtime(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRealtime() error {
	if err := ensurePositiveMap(map[string]int{
		"realtime.send_buffer":           c.Realtime.SendBuffer,
		"realtime.write_timeout_seconds": c.Realtime.WriteTimeoutSeconds,
		"realtime.control_burst":         c.Realtime.ControlBurst,
		"workflow.busy_retries":          c.Workflow.BusyRetries,
	}); err != nil {
		return err
	}
	if c.Realtime.ControlRate <= 0 {
		return errors.New("realtime.control_rate must be positive")
	}
	return nil
}

func (c *Config) validateAuth() error {
	seen := make(map[string]struct{}, len(c.Auth.Tokens))
	for i, tok := range c.Auth.Tokens {
		if tok.Token == "" {
			return fmt.Errorf("auth.tokens[%d].token must be set", i)
		}
		if tok.Identity == "" {
			return fmt.Errorf("auth.tokens[%d].identity must be set", i)
		}
		if tok.Role == "" {
			return fmt.Errorf("auth.tokens[%d].role must be set", i)
		}
		if _, dup := seen[tok.Token]; dup {
			return fmt.Errorf("auth.tokens[%d].token duplicates an earlier token", i)
		}
		seen[tok.Token] = struct{}{}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
