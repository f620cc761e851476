package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/config"
)

func validConfig(t *testing.T) config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Transcriber.BaseURL = "https://stt.example.com"
	cfg.Staging.BaseURL = "https://staging.example.com"
	return cfg
}

func TestDefaultValidatesAfterRequiredFields(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsMissingTranscriber(t *testing.T) {
	cfg := validConfig(t)
	cfg.Transcriber.BaseURL = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "transcriber.base_url") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBadWorkflowValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero batch size", func(c *config.Config) { c.Workflow.BatchSize = 0 }},
		{"zero lease", func(c *config.Config) { c.Workflow.LeaseSeconds = 0 }},
		{"zero max deliveries", func(c *config.Config) { c.Workflow.MaxDeliveries = 0 }},
		{"negative poll", func(c *config.Config) { c.Workflow.QueuePollInterval = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(base, "data") + `"
log_dir = "` + filepath.Join(base, "logs") + `"

[transcriber]
base_url = "https://stt.example.com/"
api_key = "secret"

[staging]
base_url = "https://staging.example.com/"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Transcriber.BaseURL != "https://stt.example.com" {
		t.Fatalf("base URL not normalized: %q", cfg.Transcriber.BaseURL)
	}
	if cfg.Workflow.BatchSize != 10 {
		t.Fatalf("default batch size not applied: %d", cfg.Workflow.BatchSize)
	}
	if cfg.JobDatabasePath() != filepath.Join(base, "data", "jobs.db") {
		t.Fatalf("unexpected job db path: %s", cfg.JobDatabasePath())
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte("[workflow]\nbatch_size = 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected load failure")
	}
}

func TestSampleConfigNotEmpty(t *testing.T) {
	if strings.TrimSpace(config.SampleConfig()) == "" {
		t.Fatal("sample config should be embedded")
	}
}
