package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithRunID(ctx, "run-1")
	ctx = WithPipeline(ctx, "main")
	ctx = WithStage(ctx, "Sync")
	ctx = WithTask(ctx, "buildbot.command")

	lc := GetContext(ctx)
	if lc.RunID != "run-1" {
		t.Errorf("expected run-1, got %s", lc.RunID)
	}
	if lc.Pipeline != "main" {
		t.Errorf("expected main, got %s", lc.Pipeline)
	}
	if lc.Stage != "Sync" {
		t.Errorf("expected Sync, got %s", lc.Stage)
	}
	if lc.Task != "buildbot.command" {
		t.Errorf("expected buildbot.command, got %s", lc.Task)
	}
}

func TestStageOverridesPreviousValue(t *testing.T) {
	ctx := WithStage(context.Background(), "Sync")
	ctx = WithStage(ctx, "Build")
	if got := GetContext(ctx).Stage; got != "Build" {
		t.Errorf("expected Build, got %s", got)
	}
}

func TestEmptyContextHasNoAttrs(t *testing.T) {
	if attrs := Attrs(context.Background()); len(attrs) != 0 {
		t.Errorf("expected no attrs, got %v", attrs)
	}
}

func TestLoggerCarriesContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithRunID(context.Background(), "run-42")
	ctx = WithStage(ctx, "Archive")
	Logger(ctx, base).Info("stage started")

	out := buf.String()
	for _, want := range []string{"run_id=run-42", "stage=Archive", "stage started"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestInfoContextUsesDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := WithPipeline(context.Background(), "nightly")
	InfoContext(ctx, "pipeline started", slog.Int("stages", 3))

	out := buf.String()
	if !strings.Contains(out, "pipeline=nightly") || !strings.Contains(out, "stages=3") {
		t.Errorf("unexpected log output: %q", out)
	}
}
