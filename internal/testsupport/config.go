package testsupport

import (
	"path/filepath"
	"testing"

	"srtfix/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.InboxDir = filepath.Join(base, "inbox")
	cfgVal.Paths.OutboxDir = filepath.Join(base, "outbox")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Watch.SettleMS = 20

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithMapping writes a mapping CSV built from pairs (corrupted, replacement,
// corrupted, replacement, ...) and points the config at it.
func WithMapping(pairs ...string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "mapping.csv")
		WriteMapping(b.t, path, pairs...)
		b.cfg.Paths.MappingFile = path
	}
}

// WithOutputDir points paths.output_dir at <base>/<name>. Without it repaired
// files are written beside their inputs.
func WithOutputDir(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.OutputDir = filepath.Join(b.baseDir, name)
	}
}

// WithoutHistory disables the SQLite journal.
func WithoutHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
