package ledgerstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildbot/internal/results"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveAndLoadRun(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	started := time.Now().Add(-time.Minute)
	recs := []results.StageRecord{
		{Name: "Sync", Outcome: results.OutcomeSuccess, Duration: 2 * time.Second},
		{Name: "Build", Outcome: results.OutcomeFailure, Description: "exit status 1"},
	}
	require.NoError(t, store.SaveRun(ctx, Run{
		ID: "run-1", Pipeline: "main", Outcome: "failed", StartedAt: started, FinishedAt: time.Now(),
	}, recs))

	got, err := store.RunRecords(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, recs, got)

	latest, err := store.LoadCompleted(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, recs, latest)

	runs, err := store.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "failed", runs[0].Outcome)
	assert.Equal(t, started.UnixNano(), runs[0].StartedAt.UnixNano())
}

func TestLoadCompletedPicksLatestRunOfPipeline(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now()

	save := func(id, pipeline, stage string) {
		require.NoError(t, store.SaveRun(ctx, Run{ID: id, Pipeline: pipeline, Outcome: "success", StartedAt: now, FinishedAt: now},
			[]results.StageRecord{{Name: stage, Outcome: results.OutcomeSuccess}}))
	}
	save("a", "main", "Old")
	save("b", "nightly", "Other")
	save("c", "main", "New")

	recs, err := store.LoadCompleted(ctx, "main")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "New", recs[0].Name)

	runs, err := store.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}

func TestLoadCompletedEmpty(t *testing.T) {
	store := newTestStore(t)
	recs, err := store.LoadCompleted(context.Background(), "main")
	require.NoError(t, err)
	assert.Nil(t, recs)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(ctx, Run{ID: "r", Pipeline: "main", Outcome: "success"},
		[]results.StageRecord{{Name: "Sync", Outcome: results.OutcomeSuccess}}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	recs, err := reopened.LoadCompleted(ctx, "main")
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestDuplicateRunIDRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	run := Run{ID: "dup", Pipeline: "main", Outcome: "success"}
	require.NoError(t, store.SaveRun(ctx, run, nil))
	require.Error(t, store.SaveRun(ctx, run, nil))
}
