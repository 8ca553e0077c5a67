package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultForgiven ResultLabel = "forgiven"
	ResultFailure  ResultLabel = "failure"
	ResultSkipped  ResultLabel = "skipped"
)

// BuildOutcomeLabel enumerates final pipeline outcomes.
type BuildOutcomeLabel string

const (
	BuildOutcomeSuccess     BuildOutcomeLabel = "success"
	BuildOutcomeFailed      BuildOutcomeLabel = "failed"
	BuildOutcomeInterrupted BuildOutcomeLabel = "interrupted"
)

// Recorder defines observability hooks for pipeline, stage and worker metrics.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	ObserveWorkerDuration(task string, d time.Duration, success bool)
	SetPoolWorkers(n int)
	IncStageRetry(stage string)
	IncStageRetryExhausted(stage string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)        {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)                {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)                 {}
func (NoopRecorder) ObserveWorkerDuration(string, time.Duration, bool) {}
func (NoopRecorder) SetPoolWorkers(int)                                {}
func (NoopRecorder) IncStageRetry(string)                              {}
func (NoopRecorder) IncStageRetryExhausted(string)                     {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
