package parallel

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/buildbot/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbot/internal/results"
)

func poolLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pool.log")
	t.Setenv(poolLogEnv, path)
	return path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func countPrefix(lines []string, prefix string) int {
	n := 0
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func TestPoolRunsEveryEntryOnceAndExitHookPerWorker(t *testing.T) {
	logPath := poolLog(t)
	var out bytes.Buffer
	ledger := results.NewLedger()
	spec := PoolSpec{Task: "test.pool.item", OnExit: "test.pool.exit", Processes: 3}

	err := WithPool(context.Background(), spec, func(p *Pool) error {
		assert.Equal(t, 3, p.Processes())
		for i := 0; i < 10; i++ {
			if err := p.Put(fmt.Sprintf("n%d", i)); err != nil {
				return err
			}
		}
		return nil
	}, testOptions(t, &out, ledger)...)
	require.NoError(t, err)

	lines := readLines(t, logPath)
	assert.Equal(t, 10, countPrefix(lines, "item "))
	for i := 0; i < 10; i++ {
		assert.Contains(t, lines, fmt.Sprintf("item n%d", i))
	}

	exits := map[string]bool{}
	for _, l := range lines {
		if strings.HasPrefix(l, "exit ") {
			exits[l] = true
		}
	}
	assert.Equal(t, 3, countPrefix(lines, "exit "))
	assert.Len(t, exits, 3, "each worker runs the exit hook exactly once")

	assert.Equal(t, 10, ledger.Len())
}

func TestPoolWorkerDrainsAfterFailure(t *testing.T) {
	logPath := poolLog(t)
	var out bytes.Buffer
	spec := PoolSpec{Task: "test.pool.item", OnExit: "test.pool.exit", Processes: 1}

	err := WithPool(context.Background(), spec, func(p *Pool) error {
		for _, item := range []string{"ok1", "bad", "ok2", "ok3"} {
			if err := p.Put(item); err != nil {
				return err
			}
		}
		return nil
	}, testOptions(t, &out, nil)...)

	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Failures(), 1)
	assert.Contains(t, agg.Failures()[0].Text, "cannot process bad item")

	lines := readLines(t, logPath)
	assert.Equal(t, []string{"item ok1", "item bad"}, lines[:2])
	assert.Equal(t, 2, countPrefix(lines, "item "), "entries after the failure are drained without running")
	assert.Equal(t, 1, countPrefix(lines, "exit "), "exit hook still runs")
}

func TestPoolFailureStopsOnlyTheFailingWorker(t *testing.T) {
	logPath := poolLog(t)
	var out bytes.Buffer
	ledger := results.NewLedger()
	spec := PoolSpec{Task: "test.pool.pid", OnExit: "test.pool.exit", Processes: 3}

	const entries = 30
	err := WithPool(context.Background(), spec, func(p *Pool) error {
		for i := 0; i < entries; i++ {
			item := fmt.Sprintf("n%d", i)
			if i == 2 {
				item = "bad"
			}
			if err := p.Put(item); err != nil {
				return err
			}
		}
		return nil
	}, testOptions(t, &out, ledger)...)

	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Failures(), 1)
	assert.Contains(t, agg.Failures()[0].Text, "cannot process bad item")

	// Lines are "pid <pid> <item>" in the order each worker ran them.
	byPID := map[string][]string{}
	processed := 0
	exits := 0
	for _, l := range readLines(t, logPath) {
		fields := strings.Fields(l)
		switch fields[0] {
		case "pid":
			require.Len(t, fields, 3, l)
			byPID[fields[1]] = append(byPID[fields[1]], fields[2])
			processed++
		case "exit":
			exits++
		}
	}

	var failing string
	for pid, items := range byPID {
		if slices.Contains(items, "bad") {
			failing = pid
		}
	}
	require.NotEmpty(t, failing)
	items := byPID[failing]
	assert.Equal(t, "bad", items[len(items)-1], "the failing worker runs nothing after its failure")

	afterFailure := 0
	for pid, items := range byPID {
		if pid == failing {
			continue
		}
		for _, item := range items {
			if n, err := strconv.Atoi(strings.TrimPrefix(item, "n")); err == nil && n > 2 {
				afterFailure++
			}
		}
	}
	assert.Positive(t, afterFailure, "other workers keep taking entries queued after the failure")

	drained := entries - processed
	assert.GreaterOrEqual(t, drained, 0)
	assert.Equal(t, processed, ledger.Len(), "records of every run entry are merged, including the failing one")
	assert.Equal(t, 3, exits, "every worker runs its exit hook")
	assert.LessOrEqual(t, len(byPID), 3)
}

func TestPoolPutAfterClose(t *testing.T) {
	poolLog(t)
	var out bytes.Buffer
	p, err := StartPool(context.Background(), PoolSpec{Task: "test.pool.item", Processes: 1}, testOptions(t, &out, nil)...)
	require.NoError(t, err)

	require.NoError(t, p.Close())

	err = p.Put("late")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryPool))
	assert.Error(t, p.Close(), "second close")
}

func TestPoolPutFailsWhenAllWorkersExited(t *testing.T) {
	var out bytes.Buffer
	p, err := StartPool(context.Background(), PoolSpec{Task: "test.exit", Processes: 1}, testOptions(t, &out, nil)...)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return p.Put("x") != nil
	}, 10*time.Second, 20*time.Millisecond)

	err = p.Close()
	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	assert.True(t, agg.HasKind(ferrors.CategoryWorker))
}

func TestStartPoolRejectsUnknownTask(t *testing.T) {
	_, err := StartPool(context.Background(), PoolSpec{Task: "test.missing"})
	require.Error(t, err)

	_, err = StartPool(context.Background(), PoolSpec{Task: "test.pool.item", OnExit: "test.missing"})
	require.Error(t, err)
}

func TestRunTasksInProcessPool(t *testing.T) {
	logPath := poolLog(t)
	var out bytes.Buffer
	inputs := [][]any{{"a"}, {"b"}, {"c"}, {"d"}}

	require.NoError(t, RunTasksInProcessPool(context.Background(), "test.pool.item", inputs, 2, testOptions(t, &out, nil)...))

	lines := readLines(t, logPath)
	assert.ElementsMatch(t, []string{"item a", "item b", "item c", "item d"}, lines)
}

func TestRunTasksInProcessPoolDefaultsToCPUCount(t *testing.T) {
	poolLog(t)
	var out bytes.Buffer
	require.NoError(t, RunTasksInProcessPool(context.Background(), "test.pool.item", [][]any{{"solo"}}, 0, testOptions(t, &out, nil)...))
}
