package parallel

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"git.home.luguber.info/inful/buildbot/internal/logfields"
)

// worker is the parent-side handle of one worker process.
type worker struct {
	index   int
	task    string
	opts    *options
	cmd     *exec.Cmd
	started time.Time

	out    *os.File // worker stdout+stderr
	offset int64    // bytes of out already forwarded

	sendMu   sync.Mutex
	requests *os.File
	enc      *json.Encoder
	replies  *os.File

	// dispatch answers a ready frame; nil for single-step workers.
	dispatch func() frame

	result   chan frame    // receives the result frame, buffered
	readDone chan struct{} // closed when the reply stream ends
	exited   chan struct{} // closed when the process has been reaped
	waitErr  error
}

// startWorker spawns a worker process. The returned worker has not been sent
// a request yet.
func startWorker(o *options, index int, task string, dispatch func() frame) (*worker, error) {
	exe, err := o.resolveExecutable()
	if err != nil {
		return nil, fmt.Errorf("resolve worker executable: %w", err)
	}

	out, err := os.CreateTemp(o.tempDir, "buildbot-worker-*.log")
	if err != nil {
		return nil, fmt.Errorf("create worker output file: %w", err)
	}

	reqR, reqW, err := os.Pipe()
	if err != nil {
		cleanupFile(out)
		return nil, fmt.Errorf("create request pipe: %w", err)
	}
	resR, resW, err := os.Pipe()
	if err != nil {
		cleanupFile(out)
		closeAll(reqR, reqW)
		return nil, fmt.Errorf("create result pipe: %w", err)
	}

	cmd := exec.Command(exe)
	cmd.Env = append(os.Environ(), workerEnv+"=1")
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.ExtraFiles = []*os.File{reqR, resW}

	if err := cmd.Start(); err != nil {
		cleanupFile(out)
		closeAll(reqR, reqW, resR, resW)
		return nil, fmt.Errorf("start worker: %w", err)
	}
	// The child holds its own copies now.
	closeAll(reqR, resW)

	w := &worker{
		index:    index,
		task:     task,
		opts:     o,
		cmd:      cmd,
		started:  time.Now(),
		out:      out,
		requests: reqW,
		enc:      json.NewEncoder(reqW),
		replies:  resR,
		dispatch: dispatch,
		result:   make(chan frame, 1),
		readDone: make(chan struct{}),
		exited:   make(chan struct{}),
	}
	go w.readReplies()
	go w.reap()

	o.logger.Debug("Worker started",
		logfields.Task(task),
		logfields.Worker(index),
		logfields.PID(cmd.Process.Pid),
		logfields.Path(out.Name()))
	return w, nil
}

func (w *worker) send(f frame) error {
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if w.requests == nil {
		return errors.New("request channel closed")
	}
	return w.enc.Encode(f)
}

func (w *worker) closeRequests() {
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if w.requests != nil {
		_ = w.requests.Close()
		w.requests = nil
	}
}

// readReplies decodes frames from the worker until the stream ends.
func (w *worker) readReplies() {
	defer close(w.readDone)
	defer w.replies.Close()

	dec := json.NewDecoder(w.replies)
	for {
		var f frame
		if err := dec.Decode(&f); err != nil {
			if !errors.Is(err, io.EOF) {
				w.opts.logger.Warn("Worker reply stream broken", logfields.Task(w.task), logfields.Worker(w.index), logfields.Error(err))
			}
			return
		}
		switch f.Type {
		case frameReady:
			next := frame{Type: frameDone}
			if w.dispatch != nil {
				next = w.dispatch()
			}
			if err := w.send(next); err != nil {
				w.opts.logger.Warn("Failed to answer worker", logfields.Task(w.task), logfields.Worker(w.index), logfields.Error(err))
			}
			if next.Type == frameDone {
				w.closeRequests()
			}
		case frameResult:
			select {
			case w.result <- f:
			default:
				w.opts.logger.Warn("Duplicate worker result ignored", logfields.Task(w.task), logfields.Worker(w.index))
			}
		default:
			w.opts.logger.Warn("Unexpected worker frame", logfields.Task(w.task), slog.String("type", string(f.Type)))
		}
	}
}

func (w *worker) reap() {
	w.waitErr = w.cmd.Wait()
	close(w.exited)
}

// wait blocks until the worker reports, forwarding new output every poll
// interval, then replays the rest, removes the output file and merges the
// worker's records into the parent ledger.
func (w *worker) wait() []*Failure {
	ticker := time.NewTicker(w.opts.pollInterval)
	defer ticker.Stop()

	var res *frame
poll:
	for {
		select {
		case f := <-w.result:
			res = &f
			break poll
		case <-w.readDone:
			select {
			case f := <-w.result:
				res = &f
			default:
			}
			break poll
		case <-ticker.C:
			w.forward()
		}
	}

	w.closeRequests()
	<-w.exited
	w.forward()
	cleanupFile(w.out)

	var failures []*Failure
	if res == nil {
		failures = []*Failure{w.lostResult()}
	} else {
		w.opts.ledger.Merge(res.Records)
		failures = res.Failures
	}

	w.opts.recorder.ObserveWorkerDuration(w.task, time.Since(w.started), len(failures) == 0)
	w.opts.logger.Debug("Worker finished",
		logfields.Task(w.task),
		logfields.Worker(w.index),
		logfields.Count(len(failures)),
		logfields.Duration(time.Since(w.started)))
	return failures
}

func (w *worker) lostResult() *Failure {
	status := "exit status 0"
	if w.waitErr != nil {
		status = w.waitErr.Error()
	}
	return workerFailure(w.task, "worker %d (pid %d) exited without reporting a result: %s",
		w.index, w.cmd.Process.Pid, status)
}

// forward copies output appended since the last call to the parent's output.
func (w *worker) forward() {
	buf := make([]byte, 32*1024)
	for {
		n, err := w.out.ReadAt(buf, w.offset)
		if n > 0 {
			_, _ = w.opts.output.Write(buf[:n])
			w.offset += int64(n)
		}
		if err != nil || n == 0 {
			return
		}
	}
}

func cleanupFile(f *os.File) {
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
