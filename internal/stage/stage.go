package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"time"

	goerrors "github.com/go-errors/errors"

	"git.home.luguber.info/inful/buildbot/internal/config"
	ferrors "git.home.luguber.info/inful/buildbot/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbot/internal/logfields"
	"git.home.luguber.info/inful/buildbot/internal/metrics"
	"git.home.luguber.info/inful/buildbot/internal/observability"
	"git.home.luguber.info/inful/buildbot/internal/results"
)

// Body is the work a stage performs.
type Body interface {
	PerformStage(ctx context.Context) error
}

// SkipHandler is implemented by bodies that need to react when the stage is
// skipped or resumed instead of executed.
type SkipHandler interface {
	HandleSkip(ctx context.Context)
}

// ErrorClassifier is implemented by bodies that decide themselves whether an
// error is forgiven. It must return OutcomeForgiven or OutcomeFailure.
type ErrorClassifier interface {
	ClassifyError(err error) results.Outcome
}

// Deps are the collaborators shared by every stage of a run.
type Deps struct {
	Config   *config.Config
	Ledger   *results.Ledger
	Console  io.Writer
	Logger   *slog.Logger
	Recorder metrics.Recorder
}

// Stage wraps a Body with the stage lifecycle.
type Stage struct {
	body        Body
	deps        Deps
	name        string
	suffix      string
	attempt     int
	option      string
	configFlag  string
	passThrough []ferrors.ErrorCategory
}

// New builds a stage for body. Without WithName the stage is named after
// the body's type with any "Stage" suffix removed.
func New(body Body, deps Deps, opts ...Option) *Stage {
	s := &Stage{
		body:        body,
		deps:        deps,
		name:        typeName(body),
		passThrough: []ferrors.ErrorCategory{ferrors.CategoryInterrupt},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.deps.Ledger == nil {
		s.deps.Ledger = results.NewLedger()
	}
	if s.deps.Console == nil {
		s.deps.Console = os.Stdout
	}
	if s.deps.Logger == nil {
		s.deps.Logger = slog.Default()
	}
	s.deps.Recorder = metrics.OrNoop(s.deps.Recorder)
	return s
}

// Name returns the name the stage records under.
func (s *Stage) Name() string {
	name := s.name + s.suffix
	if s.attempt > 1 {
		name = fmt.Sprintf("%s (attempt %d)", name, s.attempt)
	}
	return name
}

func typeName(body Body) string {
	t := reflect.TypeOf(body)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "Anonymous"
	}
	return strings.TrimSuffix(t.Name(), "Stage")
}

// Run executes the stage lifecycle. It returns nil for success, skipped,
// resumed and forgiven outcomes, a *StepFailedError for classified failures,
// and pass-through errors unchanged.
func (s *Stage) Run(ctx context.Context) (err error) {
	name := s.Name()
	ctx = observability.WithStage(ctx, name)
	log := observability.Logger(ctx, s.deps.Logger)

	if reason, skip := s.shouldSkip(); skip {
		log.Info("Skipping stage", slog.String("reason", reason))
		s.handleSkip(ctx)
		s.record(results.StageRecord{Name: name, Outcome: results.OutcomeSkipped})
		return nil
	}

	if prev, ok := s.deps.Ledger.PreviouslyCompleted(name); ok {
		log.Info("Stage completed in a previous run", logfields.Duration(prev.Duration))
		s.handleSkip(ctx)
		s.record(results.StageRecord{Name: name, Outcome: results.OutcomeSuccess, Duration: prev.Duration})
		return nil
	}

	s.begin(log)
	start := time.Now()
	rec := results.StageRecord{Name: name}

	defer func() {
		rec.Duration = time.Since(start)
		s.record(rec)
		s.finish(log, rec)
	}()

	perr := s.perform(ctx)
	if perr == nil {
		rec.Outcome = results.OutcomeSuccess
		return nil
	}

	rec.Description = perr.Error()
	if s.isPassThrough(perr) {
		rec.Outcome = results.OutcomeFailure
		log.Error("Stage aborted", logfields.Error(perr))
		return perr
	}

	rec.Outcome = s.classify(perr)
	if rec.Outcome == results.OutcomeForgiven {
		log.Warn("Stage failed; failure forgiven", logfields.Error(perr))
		return nil
	}
	log.Error("Stage failed", logfields.Error(perr))
	return &StepFailedError{Stage: name, Err: perr}
}

// perform calls the body, converting a panic into an error with a stack trace.
func (s *Stage) perform(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerrors.Errorf("panic in stage %s: %v", s.Name(), r)
		}
	}()
	return s.body.PerformStage(ctx)
}

func (s *Stage) shouldSkip() (string, bool) {
	cfg := s.deps.Config
	if cfg == nil {
		return "", false
	}
	if s.option != "" {
		if enabled, ok := cfg.OptionEnabled(s.option); ok && !enabled {
			return "option " + s.option + " disabled", true
		}
	}
	if s.configFlag != "" {
		if enabled, ok := cfg.BuildFlag(s.configFlag); ok && !enabled {
			return "build flag " + s.configFlag + " disabled", true
		}
	}
	return "", false
}

func (s *Stage) handleSkip(ctx context.Context) {
	if h, ok := s.body.(SkipHandler); ok {
		h.HandleSkip(ctx)
	}
}

func (s *Stage) isPassThrough(err error) bool {
	for _, cat := range s.passThrough {
		if cat == ferrors.CategoryInterrupt && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return true
		}
		if ferrors.HasCategory(err, cat) {
			return true
		}
	}
	return false
}

func (s *Stage) classify(err error) results.Outcome {
	if c, ok := s.body.(ErrorClassifier); ok {
		if out := c.ClassifyError(err); out == results.OutcomeForgiven {
			return out
		}
		return results.OutcomeFailure
	}
	return DefaultClassify(err)
}

// DefaultClassify forgives classified errors of warning or info severity and
// fails everything else.
func DefaultClassify(err error) results.Outcome {
	if ferrors.HasSeverity(err, ferrors.SeverityWarning) || ferrors.HasSeverity(err, ferrors.SeverityInfo) {
		return results.OutcomeForgiven
	}
	return results.OutcomeFailure
}

func (s *Stage) record(rec results.StageRecord) {
	s.deps.Ledger.Record(rec)
	if rec.Outcome != results.OutcomeSkipped {
		s.deps.Recorder.ObserveStageDuration(rec.Name, rec.Duration)
	}
	s.deps.Recorder.IncStageResult(rec.Name, metrics.ResultLabel(rec.Outcome))
}
