package parallel

import (
	"context"
	"encoding/json"
	"runtime"
	"sync"

	"github.com/hashicorp/go-multierror"

	ferrors "git.home.luguber.info/inful/buildbot/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbot/internal/logfields"
	"git.home.luguber.info/inful/buildbot/internal/observability"
)

// PoolSpec describes a pool of worker processes serving one task.
type PoolSpec struct {
	// Task runs once per queue entry, with the entry as its arguments.
	Task string `json:"task"`
	// OnExit, when set, runs exactly once in every worker after its queue is drained.
	OnExit string `json:"on_exit,omitempty"`
	// Processes is the number of workers; zero means one per CPU.
	Processes int `json:"processes,omitempty"`
}

// Pool feeds queue entries to a fixed set of worker processes. Each worker
// pulls its next entry when it is ready; closing the queue makes every
// worker finish its loop, run the exit task and report.
type Pool struct {
	workers       []*worker
	spawnFailures []*Failure

	queue   chan []json.RawMessage
	mu      sync.RWMutex
	closed  bool
	live    sync.WaitGroup
	allDead chan struct{}
}

// StartPool starts spec.Processes workers for spec.Task.
func StartPool(ctx context.Context, spec PoolSpec, opts ...Option) (*Pool, error) {
	if _, ok := lookup(spec.Task); !ok {
		return nil, ferrors.PoolError("task " + spec.Task + " is not registered").Build()
	}
	if spec.OnExit != "" {
		if _, ok := lookup(spec.OnExit); !ok {
			return nil, ferrors.PoolError("exit task " + spec.OnExit + " is not registered").Build()
		}
	}
	if spec.Processes <= 0 {
		spec.Processes = runtime.NumCPU()
	}

	o := newOptions(opts)
	log := observability.Logger(ctx, o.logger)
	p := &Pool{
		queue:   make(chan []json.RawMessage, spec.Processes),
		allDead: make(chan struct{}),
	}

	for i := 0; i < spec.Processes; i++ {
		w, err := startWorker(o, i, spec.Task, p.next)
		if err != nil {
			log.Error("Failed to start pool worker", logfields.Task(spec.Task), logfields.Worker(i), logfields.Error(err))
			p.spawnFailures = append(p.spawnFailures, workerFailure(spec.Task, "%v", err))
			continue
		}
		poolSpec := spec
		if err := w.send(frame{Type: framePool, Pool: &poolSpec, LogLevel: o.logLevel.String()}); err != nil {
			log.Warn("Failed to send pool request", logfields.Task(spec.Task), logfields.Worker(i), logfields.Error(err))
		}
		p.workers = append(p.workers, w)
		p.live.Add(1)
		go func() {
			<-w.readDone
			p.live.Done()
		}()
	}
	go func() {
		p.live.Wait()
		close(p.allDead)
	}()

	if len(p.workers) == 0 {
		return nil, ferrors.WrapError(aggregate(p.spawnFailures), ferrors.CategoryPool, "no pool worker could be started").Build()
	}

	o.recorder.SetPoolWorkers(len(p.workers))
	log.Info("Worker pool started", logfields.Task(spec.Task), logfields.Processes(len(p.workers)))
	return p, nil
}

// Processes returns the number of workers that were started.
func (p *Pool) Processes() int { return len(p.workers) }

// next answers a worker's ready frame with the next entry, or done once the
// queue is closed and drained.
func (p *Pool) next() frame {
	args, ok := <-p.queue
	if !ok {
		return frame{Type: frameDone}
	}
	return frame{Type: frameItem, Args: args}
}

// Put enqueues one entry; args become the task's positional arguments. It
// fails after Close and when every worker has already exited.
func (p *Pool) Put(args ...any) error {
	raw, err := encodeArgs(args)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryPool, "encode pool entry").Build()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ferrors.PoolError("put on closed pool").Build()
	}

	select {
	case <-p.allDead:
		return ferrors.PoolError("all pool workers have exited").Build()
	default:
	}

	select {
	case p.queue <- raw:
		return nil
	case <-p.allDead:
		return ferrors.PoolError("all pool workers have exited").Build()
	}
}

// Close closes the queue and waits for every worker in start order. It
// returns an *AggregateError when any entry, exit task or worker failed.
// Calling Close more than once is an error.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ferrors.PoolError("pool already closed").Build()
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	failures := append([]*Failure(nil), p.spawnFailures...)
	for _, w := range p.workers {
		failures = append(failures, w.wait()...)
	}
	return aggregate(failures)
}

// WithPool starts a pool, lets fn enqueue entries and closes the pool when
// fn returns, waiting for all workers.
func WithPool(ctx context.Context, spec PoolSpec, fn func(p *Pool) error, opts ...Option) error {
	p, err := StartPool(ctx, spec, opts...)
	if err != nil {
		return err
	}
	fnErr := fn(p)
	closeErr := p.Close()
	if fnErr == nil {
		return closeErr
	}
	if closeErr == nil {
		return fnErr
	}
	return multierror.Append(fnErr, closeErr)
}

// RunTasksInProcessPool runs task once per entry of inputs on a pool of
// processes workers.
func RunTasksInProcessPool(ctx context.Context, task string, inputs [][]any, processes int, opts ...Option) error {
	spec := PoolSpec{Task: task, Processes: processes}
	return WithPool(ctx, spec, func(p *Pool) error {
		for _, args := range inputs {
			if err := p.Put(args...); err != nil {
				return err
			}
		}
		return nil
	}, opts...)
}
