package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	ferrors "git.home.luguber.info/inful/buildbot/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbot/internal/ledgerstore"
	"git.home.luguber.info/inful/buildbot/internal/logfields"
	"git.home.luguber.info/inful/buildbot/internal/metrics"
	"git.home.luguber.info/inful/buildbot/internal/observability"
	"git.home.luguber.info/inful/buildbot/internal/results"
)

// Result summarizes one finished run. Resumed counts the records restored
// from the previous run.
type Result struct {
	RunID    string
	Outcome  metrics.BuildOutcomeLabel
	Records  []results.StageRecord
	Duration time.Duration
	Resumed  int
}

// Run clears the ledger and runs every stage in order. It returns the first
// stage error (or the last, when stopOnError is off) together with the result.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	unlock, err := p.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	p.ledger.Clear()
	res := &Result{RunID: uuid.NewString()}
	ctx = observability.WithRunID(ctx, res.RunID)
	ctx = observability.WithPipeline(ctx, p.name)
	log := observability.Logger(ctx, p.logger)

	if p.resume {
		n, err := p.restore(ctx)
		if err != nil {
			return nil, err
		}
		res.Resumed = n
	}

	log.Info("Pipeline started", logfields.Count(len(p.stages)))
	start := time.Now()

	var runErr error
	for _, st := range p.stages {
		if err := st.Run(ctx); err != nil {
			runErr = err
			if p.stopOnError {
				log.Error("Stopping pipeline after failed stage", logfields.Stage(st.Name()), logfields.Error(err))
				break
			}
		}
	}

	res.Duration = time.Since(start)
	res.Records = p.ledger.Records()
	res.Outcome = outcomeOf(ctx, runErr)

	p.recorder.ObserveBuildDuration(res.Duration)
	p.recorder.IncBuildOutcome(res.Outcome)

	if err := p.persist(ctx, res, start); err != nil {
		log.Error("Failed to persist run", logfields.Error(err))
		if runErr == nil {
			runErr = err
		}
	}

	log.Info("Pipeline finished",
		logfields.Outcome(string(res.Outcome)),
		logfields.Duration(res.Duration),
		logfields.Count(len(res.Records)))
	return res, runErr
}

func outcomeOf(ctx context.Context, err error) metrics.BuildOutcomeLabel {
	switch {
	case err == nil:
		return metrics.BuildOutcomeSuccess
	case ferrors.HasCategory(err, ferrors.CategoryInterrupt),
		errors.Is(err, context.Canceled),
		ctx.Err() != nil:
		return metrics.BuildOutcomeInterrupted
	default:
		return metrics.BuildOutcomeFailed
	}
}

func (p *Pipeline) restore(ctx context.Context) (int, error) {
	if p.store == nil {
		return 0, ferrors.ConfigError("resume requested without a ledger store").Build()
	}
	recs, err := p.store.LoadCompleted(ctx, p.name)
	if err != nil {
		return 0, ferrors.WrapError(err, ferrors.CategoryLedger, "load previous run").Build()
	}
	p.ledger.RestoreCompleted(recs)
	restored := len(p.ledger.Restored())
	observability.InfoContext(ctx, "Restored completed stages", logfields.Count(restored))
	return restored, nil
}

func (p *Pipeline) persist(ctx context.Context, res *Result, start time.Time) error {
	if p.store == nil {
		return nil
	}
	run := ledgerstore.Run{
		ID:         res.RunID,
		Pipeline:   p.name,
		Outcome:    string(res.Outcome),
		StartedAt:  start,
		FinishedAt: start.Add(res.Duration),
	}
	if err := p.store.SaveRun(context.WithoutCancel(ctx), run, res.Records); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryLedger, "save run").Build()
	}
	return nil
}

func (p *Pipeline) lock() (func(), error) {
	if p.lockPath == "" {
		return func() {}, nil
	}
	fl := flock.New(p.lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "acquire pipeline lock").
			WithContext("path", p.lockPath).
			Build()
	}
	if !ok {
		return nil, ferrors.RuntimeError(fmt.Sprintf("another run holds the pipeline lock %s", p.lockPath)).
			UserAction().
			Build()
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			p.logger.Warn("Failed to release pipeline lock", logfields.Path(p.lockPath), logfields.Error(err))
		}
	}, nil
}
