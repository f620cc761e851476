package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConsoleHandlerSingleLine(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl)).With(
		String(FieldComponent, "pipeline"),
	)

	logger.Info("job completed", String(FieldJobID, "j1"), Int("word_count", 42))

	line := strings.TrimSuffix(buf.String(), "\n")
	if strings.Count(buf.String(), "\n") != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	if !strings.Contains(line, " INFO pipeline: job completed") {
		t.Errorf("line missing level/component/message: %q", line)
	}
	if !strings.Contains(line, "job_id=j1") || !strings.Contains(line, "word_count=42") {
		t.Errorf("line missing attrs: %q", line)
	}
}

func TestConsoleHandlerQuotesValues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, new(slog.LevelVar)))

	logger.Warn("cleanup failed", String("detail", "http 500: boom"))

	if !strings.Contains(buf.String(), `detail="http 500: boom"`) {
		t.Errorf("value with spaces not quoted: %q", buf.String())
	}
}

func TestConsoleHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("suppressed")
	logger.Warn("kept")

	if strings.Contains(buf.String(), "suppressed") {
		t.Errorf("info record leaked past warn level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("warn record missing: %q", buf.String())
	}
}

func TestJSONHandlerFieldNames(t *testing.T) {
	var buf bytes.Buffer
	handler := newJSONHandler(&buf, new(slog.LevelVar))
	logger := slog.New(handler)

	logger.Error("upstream failure", String(FieldJobID, "j2"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output not json: %v\n%s", err, buf.String())
	}
	if _, ok := record["ts"]; !ok {
		t.Errorf("json record missing ts: %v", record)
	}
	if record["level"] != "error" {
		t.Errorf("level = %v, want error", record["level"])
	}
	if record[FieldJobID] != "j2" {
		t.Errorf("job id = %v", record[FieldJobID])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestNewWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "scribe.log")

	logger, err := New(Options{Format: "json", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hello")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file missing record: %q", string(data))
	}
}

func TestNoopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("noop logger should report disabled at every level")
	}
}
