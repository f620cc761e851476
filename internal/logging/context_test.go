package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"scribe/internal/services"
)

func TestContextFieldsExtractsAnnotations(t *testing.T) {
	ctx := services.WithJobID(context.Background(), "j1")
	ctx = services.WithAction(ctx, "process_video")
	ctx = services.WithStage(ctx, "staging")
	ctx = services.WithRequestID(ctx, "req-1")

	fields := ContextFields(ctx)
	got := make(map[string]string, len(fields))
	for _, field := range fields {
		got[field.Key] = field.Value.String()
	}

	want := map[string]string{
		FieldJobID:         "j1",
		FieldAction:        "process_video",
		FieldStage:         "staging",
		FieldCorrelationID: "req-1",
	}
	for key, value := range want {
		if got[key] != value {
			t.Errorf("field %s = %q, want %q", key, got[key], value)
		}
	}
	if len(fields) != len(want) {
		t.Errorf("got %d fields, want %d: %v", len(fields), len(want), got)
	}
}

func TestContextFieldsEmptyContext(t *testing.T) {
	if fields := ContextFields(context.Background()); len(fields) != 0 {
		t.Errorf("unannotated context produced fields: %v", fields)
	}
	if fields := ContextFields(nil); fields != nil {
		t.Errorf("nil context produced fields: %v", fields)
	}
}

func TestWithContextMergesIntoOutput(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	base := slog.New(newConsoleHandler(&buf, lvl))

	ctx := services.WithJobID(context.Background(), "j2")
	ctx = services.WithStage(ctx, "transcribe")
	WithContext(ctx, base).Info("transcribing audio")

	line := buf.String()
	for _, want := range []string{"job_id=j2", "stage=transcribe"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %s", line, want)
		}
	}
}

func TestWithContextWithoutAnnotationsReturnsLogger(t *testing.T) {
	base := NewNop()
	if got := WithContext(context.Background(), base); got != base {
		t.Error("context without annotations should return the logger unchanged")
	}
	if got := WithContext(context.Background(), nil); got == nil {
		t.Error("nil logger should fall back to a nop logger")
	}
}
