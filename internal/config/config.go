package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	APIBind string `toml:"api_bind"`
}

// Workflow contains settings for the review pipeline.
type Workflow struct {
	// ReviewerRole names the role allowed to review, publish, and archive.
	ReviewerRole string `toml:"reviewer_role"`
	// BusyRetries bounds how often a transaction is retried while the
	// database reports it is locked.
	BusyRetries int `toml:"busy_retries"`
}

// Realtime contains settings for the live event gateway.
type Realtime struct {
	SendBuffer          int     `toml:"send_buffer"`
	WriteTimeoutSeconds int     `toml:"write_timeout_seconds"`
	ControlRate         float64 `toml:"control_rate"`
	ControlBurst        int     `toml:"control_burst"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Token binds a bearer token to the identity and role it authenticates.
type Token struct {
	Token    string `toml:"token"`
	Identity string `toml:"identity"`
	Role     string `toml:"role"`
}

// Auth contains the static credentials accepted by the API and gateway.
type Auth struct {
	Tokens []Token `toml:"tokens"`
}

// Config encapsulates all configuration values for templateflow.
//
// Configuration sections by subsystem:
//   - Paths: data directory and API bind address
//   - Workflow: reviewer role and store retry budget
//   - Realtime: per-connection buffering, write timeouts, control throttling
//   - Logging: log format and level
//   - Auth: bearer tokens mapped to identity and role
type Config struct {
	Paths    Paths    `toml:"paths"`
	Workflow Workflow `toml:"workflow"`
	Realtime Realtime `toml:"realtime"`
	Logging  Logging  `toml:"logging"`
	Auth     Auth     `toml:"auth"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/templateflow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("templateflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.DataDir, err)
	}
	return nil
}

// DatabasePath returns the location of the SQLite store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "templateflow.db")
}

// LockPath returns the location of the daemon single-instance lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "templateflow.lock")
}

// LogPath returns the location of the daemon log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.DataDir, "templateflow.log")
}

// WriteTimeout returns the realtime write deadline as a duration.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Realtime.WriteTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
