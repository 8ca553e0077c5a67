package parallel

import (
	"context"

	"git.home.luguber.info/inful/buildbot/internal/logfields"
	"git.home.luguber.info/inful/buildbot/internal/observability"
)

// RunParallelSteps runs each step in its own worker process. All workers are
// started first; they are then waited on in submission order, each worker's
// output replayed in full before the next is touched. Worker records are
// merged into the configured ledger in the same order. When any step fails
// the result is an *AggregateError holding every failure.
//
// ctx only carries log attributes; running workers are not cancelled.
func RunParallelSteps(ctx context.Context, steps []Step, opts ...Option) error {
	o := newOptions(opts)
	log := observability.Logger(ctx, o.logger)
	log.Info("Starting parallel steps", logfields.Count(len(steps)))

	workers := make([]*worker, len(steps))
	spawnFailures := make([]*Failure, len(steps))
	for i, st := range steps {
		w, err := startWorker(o, i, st.Task, nil)
		if err != nil {
			log.Error("Failed to start worker", logfields.Task(st.Task), logfields.Worker(i), logfields.Error(err))
			spawnFailures[i] = workerFailure(st.Task, "%v", err)
			continue
		}
		step := st
		if err := w.send(frame{Type: frameRun, Step: &step, LogLevel: o.logLevel.String()}); err != nil {
			log.Warn("Failed to send step to worker", logfields.Task(st.Task), logfields.Worker(i), logfields.Error(err))
		}
		w.closeRequests()
		workers[i] = w
	}

	var failures []*Failure
	for i, w := range workers {
		if w == nil {
			failures = append(failures, spawnFailures[i])
			continue
		}
		failures = append(failures, w.wait()...)
	}

	if len(failures) > 0 {
		log.Error("Parallel steps failed", logfields.Count(len(failures)))
	}
	return aggregate(failures)
}
