// Package ledgerstore persists stage records between pipeline runs so that a
// later run can resume past stages that already succeeded.
package ledgerstore

import (
	"context"
	"time"

	"git.home.luguber.info/inful/buildbot/internal/results"
)

// Run describes one persisted pipeline run.
type Run struct {
	ID         string
	Pipeline   string
	Outcome    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store is the persistence interface used by the pipeline driver.
type Store interface {
	// SaveRun stores a finished run together with its ledger records, in order.
	SaveRun(ctx context.Context, run Run, records []results.StageRecord) error
	// LoadCompleted returns the records of the latest run of pipeline, or nil when there is none.
	LoadCompleted(ctx context.Context, pipeline string) ([]results.StageRecord, error)
	// Runs lists the most recent runs, newest first.
	Runs(ctx context.Context, limit int) ([]Run, error)
	// RunRecords returns the records of one run in ledger order.
	RunRecords(ctx context.Context, runID string) ([]results.StageRecord, error)
	Close() error
}
