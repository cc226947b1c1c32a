package testsupport

import (
	"path/filepath"
	"testing"

	"finpod/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Credentials are filled with placeholders and retries are fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.FeedDir = filepath.Join(base, "feed")
	cfgVal.Roster.Path = filepath.Join(base, "companies.json")
	cfgVal.LLM.APIKey = "test"
	cfgVal.TTS.APIKey = "test"
	cfgVal.Sources.SECIdentity = "finpod tests test@example.com"
	cfgVal.Pipeline.InitialBackoffSeconds = 0.001
	cfgVal.Pipeline.MaxBackoffSeconds = 0.005
	cfgVal.Pipeline.StageTimeoutSeconds = 10
	cfgVal.Sources.RequestsPerMinute = 0
	cfgVal.LLM.RequestsPerMinute = 0
	cfgVal.TTS.RequestsPerMinute = 0
	cfgVal.Publish.FeedLink = "https://example.com/podcast"
	cfgVal.Publish.MediaBaseURL = "https://example.com/media"
	cfgVal.Publish.CheckExistingFeed = false
	cfgVal.Logging.Format = "json"

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

// WithWorkers overrides the worker pool size.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Workers = n
	}
}

// WithMaxAttempts overrides the retry budget per stage.
func WithMaxAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.MaxAttempts = n
	}
}

// WithCacheRaw keeps raw.txt after the structure stage.
func WithCacheRaw() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.CacheRaw = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
