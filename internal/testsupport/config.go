package testsupport

import (
	"path/filepath"
	"testing"

	"holoexport/internal/config"
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
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.ExportDir = filepath.Join(base, "exports")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"

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

// WithEncoderBinary points the config at an explicit encoder path.
func WithEncoderBinary(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.FFmpeg.Binary = path
	}
}

// WithWorkers overrides the concurrent export bound on the test config.
func WithWorkers(count int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workers.MaxConcurrentExports = count
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
