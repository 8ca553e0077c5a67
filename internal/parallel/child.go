package parallel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	goerrors "github.com/go-errors/errors"

	ferrors "git.home.luguber.info/inful/buildbot/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbot/internal/logfields"
	"git.home.luguber.info/inful/buildbot/internal/observability"
	"git.home.luguber.info/inful/buildbot/internal/results"
)

// ServeIfWorker returns immediately in a normal process. In a worker process
// it serves the parent's request and exits without returning.
func ServeIfWorker() {
	if os.Getenv(workerEnv) != "1" {
		return
	}
	_ = os.Unsetenv(workerEnv)
	os.Exit(serveWorker())
}

// childSession is the worker-side state of one worker process.
type childSession struct {
	dec    *json.Decoder
	enc    *json.Encoder
	ledger *results.Ledger
	logger *slog.Logger
}

func serveWorker() int {
	requests := os.NewFile(requestFD, "buildbot-requests")
	replies := os.NewFile(resultFD, "buildbot-results")
	if requests == nil || replies == nil {
		fmt.Fprintln(os.Stderr, "buildbot worker: control channel missing")
		return 2
	}
	defer replies.Close()

	s := &childSession{
		dec:    json.NewDecoder(requests),
		enc:    json.NewEncoder(replies),
		ledger: results.NewLedger(),
	}

	var req frame
	if err := s.dec.Decode(&req); err != nil {
		fmt.Fprintf(os.Stderr, "buildbot worker: read request: %v\n", err)
		return 2
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(req.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
		With(logfields.PID(os.Getpid()))
	slog.SetDefault(s.logger)

	var failures []*Failure
	switch {
	case req.Type == frameRun && req.Step != nil:
		ctx := observability.WithTask(context.Background(), req.Step.Task)
		if f := s.runTask(ctx, req.Step.Task, req.Step.Args); f != nil {
			failures = append(failures, f)
		}
	case req.Type == framePool && req.Pool != nil:
		failures = s.servePool(*req.Pool)
	default:
		failures = append(failures, workerFailure("", "unexpected request %q", req.Type))
	}

	_ = os.Stdout.Sync()
	_ = os.Stderr.Sync()

	res := frame{Type: frameResult, Failures: failures, Records: s.ledger.Records()}
	if err := s.enc.Encode(res); err != nil {
		fmt.Fprintf(os.Stderr, "buildbot worker: send result: %v\n", err)
		return 2
	}
	return 0
}

// servePool pulls entries until the parent reports the queue drained. After
// the first failure entries are still pulled but no longer run. The exit task
// runs once at the end either way.
func (s *childSession) servePool(spec PoolSpec) []*Failure {
	ctx := observability.WithTask(context.Background(), spec.Task)
	var failures []*Failure
	handled := 0

	for {
		if err := s.enc.Encode(frame{Type: frameReady}); err != nil {
			failures = append(failures, workerFailure(spec.Task, "request pool entry: %v", err))
			break
		}
		var next frame
		if err := s.dec.Decode(&next); err != nil {
			failures = append(failures, workerFailure(spec.Task, "read pool entry: %v", err))
			break
		}
		if next.Type == frameDone {
			break
		}
		if len(failures) > 0 {
			continue
		}
		handled++
		if f := s.runTask(ctx, spec.Task, next.Args); f != nil {
			failures = append(failures, f)
		}
	}
	s.logger.Debug("Pool worker drained", logfields.Task(spec.Task), logfields.Count(handled))

	if spec.OnExit != "" {
		exitCtx := observability.WithTask(context.Background(), spec.OnExit)
		if f := s.runTask(exitCtx, spec.OnExit, nil); f != nil {
			failures = append(failures, f)
		}
	}
	return failures
}

// runTask runs one registered task, converting errors and panics to a Failure.
func (s *childSession) runTask(ctx context.Context, task string, args []json.RawMessage) (failure *Failure) {
	fn, ok := lookup(task)
	if !ok {
		return newFailure(task, ferrors.InternalError(fmt.Sprintf("task %q is not registered", task)).Build())
	}

	defer func() {
		if r := recover(); r != nil {
			failure = newFailure(task, goerrors.Errorf("panic: %v", r))
		}
	}()

	tc := &TaskContext{
		Ledger: s.ledger,
		Logger: observability.Logger(ctx, s.logger),
		Output: os.Stdout,
		args:   args,
	}
	if err := fn(ctx, tc); err != nil {
		return newFailure(task, err)
	}
	return nil
}
