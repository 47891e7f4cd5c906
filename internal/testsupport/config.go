package testsupport

import (
	"path/filepath"
	"testing"

	"templateflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp data directory per
// test. It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Realtime.WriteTimeoutSeconds = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithReviewerRole overrides the reviewing role name.
func WithReviewerRole(role string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.ReviewerRole = role
	}
}

// WithToken registers a static bearer token for identity and role.
func WithToken(token, identity, role string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Auth.Tokens = append(b.cfg.Auth.Tokens, config.Token{Token: token, Identity: identity, Role: role})
	}
}

// WithSendBuffer overrides the per-connection outbound queue size.
func WithSendBuffer(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Realtime.SendBuffer = size
	}
}
