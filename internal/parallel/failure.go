package parallel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/go-errors/errors"
	"github.com/hashicorp/go-multierror"

	ferrors "git.home.luguber.info/inful/buildbot/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbot/internal/stage"
)

// Failure is the text form of an error raised inside a worker, tagged with
// the kind of error it was.
type Failure struct {
	Kind ferrors.ErrorCategory `json:"kind"`
	Task string                `json:"task"`
	Text string                `json:"text"`
}

func (f *Failure) Error() string { return f.Text }

// newFailure formats err with the stack trace recorded where it was raised,
// or the current stack when it carries none.
func newFailure(task string, err error) *Failure {
	var ge *goerrors.Error
	if !errors.As(err, &ge) {
		ge = goerrors.Wrap(err, 2)
	}
	return &Failure{
		Kind: failureKind(err),
		Task: task,
		Text: fmt.Sprintf("task %s failed: %s\n%s", task, err.Error(), formatStack(ge)),
	}
}

// formatStack renders function and position per frame. Source lines are
// left out so the error message is not repeated by the raising statement.
func formatStack(ge *goerrors.Error) string {
	frames := ge.StackFrames()
	lines := make([]string, len(frames))
	for i, f := range frames {
		lines[i] = fmt.Sprintf("%s.%s\n\t%s:%d", f.Package, f.Name, f.File, f.LineNumber)
	}
	return strings.Join(lines, "\n")
}

func workerFailure(task, format string, args ...any) *Failure {
	return &Failure{
		Kind: ferrors.CategoryWorker,
		Task: task,
		Text: fmt.Sprintf("task %s: %s", task, fmt.Sprintf(format, args...)),
	}
}

func failureKind(err error) ferrors.ErrorCategory {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ferrors.CategoryInterrupt
	case errors.Is(err, stage.ErrStepFailed):
		return ferrors.CategoryStage
	}
	if ferrors.IsClassified(err) {
		return ferrors.GetCategory(err)
	}
	return ferrors.CategoryRuntime
}

// AggregateError collects the failures of every worker of one parallel run.
// Its message is each failure's text, separated by blank lines.
type AggregateError struct {
	failures []*Failure
	inner    *multierror.Error
}

func newAggregateError(failures []*Failure) *AggregateError {
	inner := &multierror.Error{ErrorFormat: formatFailures}
	for _, f := range failures {
		inner = multierror.Append(inner, f)
	}
	return &AggregateError{failures: failures, inner: inner}
}

func formatFailures(errs []error) string {
	texts := make([]string, len(errs))
	for i, err := range errs {
		texts[i] = err.Error()
	}
	return strings.Join(texts, "\n\n")
}

func (e *AggregateError) Error() string { return e.inner.Error() }

// Failures returns the collected failures in wait order.
func (e *AggregateError) Failures() []*Failure { return e.failures }

// Unwrap exposes every failure to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error { return e.inner.WrappedErrors() }

// HasKind reports whether any failure carries kind.
func (e *AggregateError) HasKind(kind ferrors.ErrorCategory) bool {
	for _, f := range e.failures {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// aggregate returns nil for no failures.
func aggregate(failures []*Failure) error {
	if len(failures) == 0 {
		return nil
	}
	return newAggregateError(failures)
}
