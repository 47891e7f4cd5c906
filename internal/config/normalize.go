package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeRealtime()
	c.normalizeAuth()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("TEMPLATEFLOW_DATA_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DataDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if value, ok := os.LookupEnv("TEMPLATEFLOW_API_BIND"); ok && strings.TrimSpace(value) != "" {
		c.Paths.APIBind = value
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	c.Workflow.ReviewerRole = strings.ToLower(strings.TrimSpace(c.Workflow.ReviewerRole))
	if c.Workflow.ReviewerRole == "" {
		c.Workflow.ReviewerRole = defaultReviewerRole
	}
	if c.Workflow.BusyRetries <= 0 {
		c.Workflow.BusyRetries = defaultBusyRetries
	}
}

func (c *Config) normalizeRealtime() {
	if c.Realtime.SendBuffer <= 0 {
		c.Realtime.SendBuffer = defaultSendBuffer
	}
	if c.Realtime.WriteTimeoutSeconds <= 0 {
		c.Realtime.WriteTimeoutSeconds = defaultWriteTimeoutSeconds
	}
	if c.Realtime.ControlRate <= 0 {
		c.Realtime.ControlRate = defaultControlRate
	}
	if c.Realtime.ControlBurst <= 0 {
		c.Realtime.ControlBurst = defaultControlBurst
	}
}

func (c *Config) normalizeAuth() {
	tokens := make([]Token, 0, len(c.Auth.Tokens))
	for _, tok := range c.Auth.Tokens {
		tok.Token = strings.TrimSpace(tok.Token)
		tok.Identity = strings.TrimSpace(tok.Identity)
		tok.Role = strings.ToLower(strings.TrimSpace(tok.Role))
		if tok.Token == "" && tok.Identity == "" && tok.Role == "" {
			continue
		}
		tokens = append(tokens, tok)
	}
	c.Auth.Tokens = tokens
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
