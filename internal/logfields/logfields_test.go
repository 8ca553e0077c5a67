package logfields

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"RunID", KeyRunID, "r-1", RunID("r-1")},
		{"Pipeline", KeyPipeline, "main", Pipeline("main")},
		{"Stage", KeyStage, "Sync", Stage("Sync")},
		{"Outcome", KeyOutcome, "success", Outcome("success")},
		{"Task", KeyTask, "buildbot.command", Task("buildbot.command")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Kind", KeyKind, "worker", Kind("worker")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %s", tc.name, tc.attrVal, got)
		}
	}
}

func TestNumericHelpers(t *testing.T) {
	if a := Worker(3); a.Key != KeyWorker || a.Value.Int64() != 3 {
		t.Fatalf("unexpected worker attr: %v", a)
	}
	if a := PID(42); a.Key != KeyPID || a.Value.Int64() != 42 {
		t.Fatalf("unexpected pid attr: %v", a)
	}
	if a := Duration(1500 * time.Microsecond); a.Key != KeyDurationMS || a.Value.Float64() != 1.5 {
		t.Fatalf("unexpected duration attr: %v", a)
	}
}

func TestErrorHelper(t *testing.T) {
	if a := Error(nil); a.Value.String() != "" {
		t.Fatalf("expected empty value for nil error, got %q", a.Value.String())
	}
	if a := Error(errors.New("boom")); a.Key != KeyError || a.Value.String() != "boom" {
		t.Fatalf("unexpected error attr: %v", a)
	}
}
