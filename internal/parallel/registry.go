package parallel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"git.home.luguber.info/inful/buildbot/internal/results"
)

// TaskFunc is the body of a registered task. It runs inside a worker process.
type TaskFunc func(ctx context.Context, tc *TaskContext) error

// TaskContext carries the worker-local collaborators and the step's arguments.
type TaskContext struct {
	// Ledger is the worker's own ledger; its records are merged into the
	// parent ledger when the worker is waited on.
	Ledger *results.Ledger
	Logger *slog.Logger
	Output io.Writer
	args   []json.RawMessage
}

// NArgs returns the number of positional arguments.
func (tc *TaskContext) NArgs() int { return len(tc.args) }

// Arg decodes positional argument i into v.
func (tc *TaskContext) Arg(i int, v any) error {
	if i < 0 || i >= len(tc.args) {
		return fmt.Errorf("argument %d out of range (have %d)", i, len(tc.args))
	}
	if err := json.Unmarshal(tc.args[i], v); err != nil {
		return fmt.Errorf("decode argument %d: %w", i, err)
	}
	return nil
}

var registry = struct {
	sync.RWMutex
	tasks map[string]TaskFunc
}{tasks: make(map[string]TaskFunc)}

// Register makes a task available to workers under name. It panics when
// called twice with the same name or with a nil func.
func Register(name string, fn TaskFunc) {
	registry.Lock()
	defer registry.Unlock()
	if fn == nil {
		panic("parallel: Register task is nil")
	}
	if _, dup := registry.tasks[name]; dup {
		panic("parallel: Register called twice for task " + name)
	}
	registry.tasks[name] = fn
}

// Tasks returns the sorted names of registered tasks.
func Tasks() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.tasks))
	for name := range registry.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (TaskFunc, bool) {
	registry.RLock()
	defer registry.RUnlock()
	fn, ok := registry.tasks[name]
	return fn, ok
}
