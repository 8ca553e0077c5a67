package ledgerstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/buildbot/internal/results"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating when needed) the ledger database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		pipeline TEXT NOT NULL,
		outcome TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		seq INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS stage_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		outcome TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		duration_ns INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_pipeline ON runs(pipeline, seq);
	CREATE INDEX IF NOT EXISTS idx_stage_records_run ON stage_records(run_id, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores the run and its records in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run, records []results.StageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM runs").Scan(&seq); err != nil {
		return fmt.Errorf("next run sequence: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (id, pipeline, outcome, started_at, finished_at, seq) VALUES (?, ?, ?, ?, ?, ?)",
		run.ID, run.Pipeline, run.Outcome, run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(), seq,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, r := range records {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO stage_records (run_id, position, name, outcome, description, duration_ns) VALUES (?, ?, ?, ?, ?, ?)",
			run.ID, i, r.Name, string(r.Outcome), r.Description, int64(r.Duration),
		)
		if err != nil {
			return fmt.Errorf("insert stage record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// LoadCompleted returns the records of the latest run of pipeline.
func (s *SQLiteStore) LoadCompleted(ctx context.Context, pipeline string) ([]results.StageRecord, error) {
	s.mu.RLock()
	var runID string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM runs WHERE pipeline = ? ORDER BY seq DESC LIMIT 1", pipeline,
	).Scan(&runID)
	s.mu.RUnlock()

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	return s.RunRecords(ctx, runID)
}

// Runs lists up to limit runs, newest first. A non-positive limit lists all runs.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, pipeline, outcome, started_at, finished_at FROM runs ORDER BY seq DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Pipeline, &r.Outcome, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		r.FinishedAt = time.Unix(0, finished)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// RunRecords returns the records of runID in ledger order.
func (s *SQLiteStore) RunRecords(ctx context.Context, runID string) ([]results.StageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, outcome, description, duration_ns FROM stage_records WHERE run_id = ? ORDER BY position",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stage records: %w", err)
	}
	defer rows.Close()

	var recs []results.StageRecord
	for rows.Next() {
		var r results.StageRecord
		var outcome string
		var durationNS int64
		if err := rows.Scan(&r.Name, &outcome, &r.Description, &durationNS); err != nil {
			return nil, fmt.Errorf("scan stage record: %w", err)
		}
		r.Outcome = results.Outcome(outcome)
		r.Duration = time.Duration(durationNS)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return recs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
