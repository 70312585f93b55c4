package testsupport

import (
	"path/filepath"
	"testing"

	"subscout/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithProviders overrides the enabled provider order on the test config.
func WithProviders(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.Providers = names
	}
}

// WithLanguages overrides the requested languages on the test config.
func WithLanguages(codes ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.Languages = codes
	}
}

// WithProviderSettings replaces one provider's settings on the test config.
func WithProviderSettings(name string, settings config.Provider) ConfigOption {
	return func(b *configBuilder) {
		if b.cfg.Providers == nil {
			b.cfg.Providers = make(map[string]config.Provider)
		}
		b.cfg.Providers[name] = settings
	}
}
