package errors

import (
	"fmt"
	"log/slog"
	"testing"
)

type customError struct {
	msg string
}

func (e *customError) Error() string { return e.msg }

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation", err: ValidationError("bad flag").Build(), expected: 2},
		{name: "config", err: ConfigError("bad config").Build(), expected: 7},
		{name: "stage", err: StageError("step failed").Build(), expected: 11},
		{name: "worker", err: WorkerError("lost worker").Build(), expected: 12},
		{name: "ledger", err: LedgerError("db locked").Build(), expected: 13},
		{name: "interrupt", err: InterruptError("signal").Build(), expected: 130},
		{name: "wrapped classified", err: fmt.Errorf("run: %w", ConfigError("bad").Build()), expected: 7},
		{name: "unclassified error", err: &customError{msg: "unknown error"}, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, nil)
	verbose := NewCLIErrorAdapter(true, nil)

	err := StageError("stage Sync failed").WithCause(&customError{msg: "exit status 1"}).Build()

	if got := quiet.FormatError(err); got != "Error: stage Sync failed" {
		t.Errorf("unexpected quiet format: %q", got)
	}
	if got := verbose.FormatError(err); got != "Error: [stage:error] stage Sync failed: exit status 1" {
		t.Errorf("unexpected verbose format: %q", got)
	}
	if got := quiet.FormatError(InternalError("boom").Build()); got != "Internal error occurred (use -v for details)" {
		t.Errorf("unexpected internal format: %q", got)
	}
	if got := quiet.FormatError(nil); got != "" {
		t.Errorf("expected empty string for nil, got %q", got)
	}
}
