package parallel

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/buildbot/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbot/internal/results"
)

func testOptions(t *testing.T, out *bytes.Buffer, ledger *results.Ledger) []Option {
	t.Helper()
	return []Option{
		WithOutput(out),
		WithLedger(ledger),
		WithPollInterval(50 * time.Millisecond),
		WithTempDir(t.TempDir()),
	}
}

func TestRunParallelStepsMergesRecordsInOrder(t *testing.T) {
	var out bytes.Buffer
	ledger := results.NewLedger()
	steps := []Step{
		MustStep("test.record", "a"),
		MustStep("test.record", "b"),
		MustStep("test.record", "c"),
	}

	require.NoError(t, RunParallelSteps(context.Background(), steps, testOptions(t, &out, ledger)...))

	recs := ledger.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, "a", recs[0].Name)
	assert.Equal(t, "b", recs[1].Name)
	assert.Equal(t, "c", recs[2].Name)
	assert.Equal(t, "ran a\nran b\nran c\n", out.String())
}

func TestRunParallelStepsReplaysInSubmissionOrder(t *testing.T) {
	var out bytes.Buffer
	steps := []Step{
		MustStep("test.print", "first", 1500),
		MustStep("test.print", "second"),
	}

	require.NoError(t, RunParallelSteps(context.Background(), steps, testOptions(t, &out, nil)...))

	text := out.String()
	first := strings.Index(text, "first")
	second := strings.Index(text, "second")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second, "output of step 0 must precede step 1 even though step 1 finished first")
}

func TestRunParallelStepsCollectsEveryFailure(t *testing.T) {
	var out bytes.Buffer
	ledger := results.NewLedger()
	steps := []Step{
		MustStep("test.fail", "fail_a went wrong"),
		MustStep("test.record", "ok_b"),
		MustStep("test.fail", "fail_c went wrong"),
	}

	err := RunParallelSteps(context.Background(), steps, testOptions(t, &out, ledger)...)

	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Failures(), 2)
	assert.Contains(t, agg.Failures()[0].Text, "fail_a went wrong")
	assert.Contains(t, agg.Failures()[1].Text, "fail_c went wrong")
	assert.Equal(t, ferrors.CategoryRuntime, agg.Failures()[0].Kind)
	assert.Equal(t, "test.fail", agg.Failures()[0].Task)

	recs := ledger.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "ok_b", recs[0].Name)

	assert.Equal(t, 2, strings.Count(out.String(), "about to fail"))
	assert.Contains(t, out.String(), "ran ok_b")
}

func TestAggregateMessageContainsFailureOnce(t *testing.T) {
	var out bytes.Buffer
	steps := []Step{
		MustStep("test.print", "one"),
		MustStep("test.fail", "boom"),
		MustStep("test.print", "three"),
	}

	err := RunParallelSteps(context.Background(), steps, testOptions(t, &out, nil)...)

	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(err.Error(), "boom"), err.Error())
}

func TestRunParallelStepsRecoversPanics(t *testing.T) {
	var out bytes.Buffer
	err := RunParallelSteps(context.Background(), []Step{MustStep("test.panic")}, testOptions(t, &out, nil)...)

	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Failures(), 1)
	text := agg.Failures()[0].Text
	assert.True(t, strings.HasPrefix(text, "task test.panic failed: panic: worker exploded\n"), text)
	assert.Equal(t, 1, strings.Count(text, "worker exploded"), text)
	assert.Equal(t, 1, strings.Count(text, "test.panic"), text)
}

func TestRunParallelStepsWorkerWithoutResult(t *testing.T) {
	var out bytes.Buffer
	ledger := results.NewLedger()
	steps := []Step{MustStep("test.exit"), MustStep("test.record", "after")}

	err := RunParallelSteps(context.Background(), steps, testOptions(t, &out, ledger)...)

	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Failures(), 1)
	f := agg.Failures()[0]
	assert.Equal(t, ferrors.CategoryWorker, f.Kind)
	assert.Contains(t, f.Text, "exited without reporting a result")
	assert.Contains(t, f.Text, "exit status 3")
	assert.True(t, agg.HasKind(ferrors.CategoryWorker))
	assert.Equal(t, 1, ledger.Len(), "later steps still run")
}

func TestRunParallelStepsUnknownTask(t *testing.T) {
	var out bytes.Buffer
	err := RunParallelSteps(context.Background(), []Step{MustStep("test.missing")}, testOptions(t, &out, nil)...)

	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	assert.Equal(t, ferrors.CategoryInternal, agg.Failures()[0].Kind)
	assert.Contains(t, agg.Error(), "not registered")
}

func TestRunParallelStepsSpawnFailure(t *testing.T) {
	var out bytes.Buffer
	opts := append(testOptions(t, &out, nil), WithExecutable("/nonexistent/buildbot"))

	err := RunParallelSteps(context.Background(), []Step{MustStep("test.print", "x"), MustStep("test.print", "y")}, opts...)

	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Failures(), 2)
	assert.Equal(t, ferrors.CategoryWorker, agg.Failures()[0].Kind)
}

func TestRunParallelStepsEmpty(t *testing.T) {
	require.NoError(t, RunParallelSteps(context.Background(), nil))
}

func TestAggregateError(t *testing.T) {
	a := &Failure{Kind: ferrors.CategoryStage, Task: "a", Text: "first failure"}
	b := &Failure{Kind: ferrors.CategoryWorker, Task: "b", Text: "second failure"}
	err := aggregate([]*Failure{a, b})

	assert.Equal(t, "first failure\n\nsecond failure", err.Error())

	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "a", f.Task)
	assert.True(t, errors.Is(err, b))
	assert.Nil(t, aggregate(nil))
}

func TestStepArguments(t *testing.T) {
	st, err := NewStep("task", "text", 42, []string{"x"})
	require.NoError(t, err)
	tc := &TaskContext{args: st.Args}

	var s string
	var n int
	var list []string
	require.NoError(t, tc.Arg(0, &s))
	require.NoError(t, tc.Arg(1, &n))
	require.NoError(t, tc.Arg(2, &list))
	assert.Equal(t, "text", s)
	assert.Equal(t, 42, n)
	assert.Equal(t, []string{"x"}, list)
	assert.Equal(t, 3, tc.NArgs())

	assert.Error(t, tc.Arg(3, &s))
	assert.Error(t, tc.Arg(0, &n))

	_, err = NewStep("task", make(chan int))
	assert.Error(t, err)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register("test.record", func(context.Context, *TaskContext) error { return nil })
	})
	assert.Contains(t, Tasks(), "test.record")
}
