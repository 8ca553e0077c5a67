// Package pipeline drives one pipeline run: it runs stages in order against a
// fresh ledger, optionally resuming from the records of the previous run, and
// persists the outcome.
package pipeline

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/buildbot/internal/ledgerstore"
	"git.home.luguber.info/inful/buildbot/internal/metrics"
	"git.home.luguber.info/inful/buildbot/internal/results"
)

// Runner is one step of a pipeline; *stage.Stage and *stages.Planned satisfy it.
type Runner interface {
	Name() string
	Run(ctx context.Context) error
}

// Pipeline is an ordered list of stages sharing one ledger.
type Pipeline struct {
	name        string
	ledger      *results.Ledger
	stages      []Runner
	store       ledgerstore.Store
	resume      bool
	lockPath    string
	stopOnError bool
	recorder    metrics.Recorder
	logger      *slog.Logger
}

// Option configures pipeline behavior.
type Option func(*Pipeline)

// WithStore persists every run and enables resumption.
func WithStore(s ledgerstore.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithResume restores the successful records of the previous run before
// running, so those stages are not executed again. Requires a store.
func WithResume(resume bool) Option {
	return func(p *Pipeline) { p.resume = resume }
}

// WithLockFile holds an exclusive file lock for the duration of a run.
func WithLockFile(path string) Option {
	return func(p *Pipeline) { p.lockPath = path }
}

// WithStopOnError configures whether the run stops at the first failing stage (default true).
func WithStopOnError(stop bool) Option {
	return func(p *Pipeline) { p.stopOnError = stop }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline named name that records into ledger.
func New(name string, ledger *results.Ledger, opts ...Option) *Pipeline {
	p := &Pipeline{
		name:        name,
		ledger:      ledger,
		stopOnError: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.ledger == nil {
		p.ledger = results.NewLedger()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.recorder = metrics.OrNoop(p.recorder)
	return p
}

// Add appends stages.
func (p *Pipeline) Add(stages ...Runner) *Pipeline {
	p.stages = append(p.stages, stages...)
	return p
}

// AddIf appends stages when cond is true.
func (p *Pipeline) AddIf(cond bool, stages ...Runner) *Pipeline {
	if cond {
		p.Add(stages...)
	}
	return p
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Ledger returns the ledger stages record into.
func (p *Pipeline) Ledger() *results.Ledger { return p.ledger }

// Stages returns the names of the stages in run order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, st := range p.stages {
		names[i] = st.Name()
	}
	return names
}
