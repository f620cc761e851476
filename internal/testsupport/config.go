package testsupport

import (
	"path/filepath"
	"testing"

	"scribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Transcriber.BaseURL = "http://127.0.0.1:0"
	cfg.Transcriber.APIKey = "test"
	cfg.Staging.BaseURL = "http://127.0.0.1:0"
	cfg.Staging.APIKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithNtfyTopic points notifications at a test server topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Notifications.NtfyTopic = topic
	}
}

// WithMaxDeliveries overrides the queue delivery budget.
func WithMaxDeliveries(max int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.MaxDeliveries = max
	}
}
