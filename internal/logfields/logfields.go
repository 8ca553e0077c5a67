package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyPipeline   = "pipeline"
	KeyStage      = "stage"
	KeyOutcome    = "outcome"
	KeyDurationMS = "duration_ms"
	KeyTask       = "task"
	KeyWorker     = "worker"
	KeyPID        = "pid"
	KeyProcesses  = "processes"
	KeyAttempt    = "attempt"
	KeyCount      = "count"
	KeyPath       = "path"
	KeyKind       = "kind"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Pipeline(name string) slog.Attr  { return slog.String(KeyPipeline, name) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Task(name string) slog.Attr      { return slog.String(KeyTask, name) }
func Worker(index int) slog.Attr      { return slog.Int(KeyWorker, index) }
func PID(pid int) slog.Attr           { return slog.Int(KeyPID, pid) }
func Processes(n int) slog.Attr       { return slog.Int(KeyProcesses, n) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Kind(k string) slog.Attr         { return slog.String(KeyKind, k) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

// Duration renders d as fractional milliseconds under KeyDurationMS.
func Duration(d time.Duration) slog.Attr {
	return DurationMS(float64(d) / float64(time.Millisecond))
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
