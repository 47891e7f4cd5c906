package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"templateflow/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "templateflow")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7490" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Workflow.ReviewerRole != "reviewer" {
		t.Fatalf("unexpected reviewer role: %q", cfg.Workflow.ReviewerRole)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "templateflow.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Realtime.SendBuffer != config.Default().Realtime.SendBuffer {
		t.Fatalf("unexpected send buffer: %d", cfg.Realtime.SendBuffer)
	}
}

func TestLoadHonoursDataDirEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dataDir := filepath.Join(t.TempDir(), "data")
	t.Setenv("TEMPLATEFLOW_DATA_DIR", dataDir)

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.DataDir != dataDir {
		t.Fatalf("expected env data dir %q, got %q", dataDir, cfg.Paths.DataDir)
	}
}

func TestLoadCustomConfigNormalizesTokens(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")

	custom := config.Default()
	custom.Paths.DataDir = filepath.Join(t.TempDir(), "store")
	custom.Workflow.ReviewerRole = "  Editor "
	custom.Logging.Format = "JSON"
	custom.Auth.Tokens = []config.Token{
		{Token: " tok-a ", Identity: " alice ", Role: "Reviewer"},
		{},
	}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q to be used, got %q (exists=%v)", path, resolved, exists)
	}
	if cfg.Workflow.ReviewerRole != "editor" {
		t.Fatalf("expected reviewer role normalized, got %q", cfg.Workflow.ReviewerRole)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
	if len(cfg.Auth.Tokens) != 1 {
		t.Fatalf("expected blank token entries dropped, got %d", len(cfg.Auth.Tokens))
	}
	tok := cfg.Auth.Tokens[0]
	if tok.Token != "tok-a" || tok.Identity != "alice" || tok.Role != "reviewer" {
		t.Fatalf("unexpected token normalization: %+v", tok)
	}
}

func TestValidateRejectsIncompleteTokens(t *testing.T) {
	tests := []struct {
		name   string
		tokens []config.Token
		want   string
	}{
		{"missing token", []config.Token{{Identity: "a", Role: "reviewer"}}, "token must be set"},
		{"missing identity", []config.Token{{Token: "x", Role: "reviewer"}}, "identity must be set"},
		{"missing role", []config.Token{{Token: "x", Identity: "a"}}, "role must be set"},
		{"duplicate", []config.Token{
			{Token: "x", Identity: "a", Role: "reviewer"},
			{Token: "x", Identity: "b", Role: "freelancer"},
		}, "duplicates"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Auth.Tokens = tc.tokens
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unsupported log level to fail validation")
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Realtime.ControlBurst != 40 {
		t.Fatalf("unexpected control burst from sample: %d", cfg.Realtime.ControlBurst)
	}
}
