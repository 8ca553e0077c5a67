package results

import (
	"slices"
	"sync"
)

// Ledger is the ordered sequence of StageRecords produced during a run.
// It is safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	records  []StageRecord
	restored []StageRecord
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Clear drops every current and restored record.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	l.restored = nil
}

// Record appends one record.
func (l *Ledger) Record(rec StageRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

// Merge appends records returned from a worker process, in the order given.
func (l *Ledger) Merge(recs []StageRecord) {
	if len(recs) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, recs...)
}

// Records returns a copy of the current run's records in append order.
func (l *Ledger) Records() []StageRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.records)
}

// Len returns the number of current records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// RestoreCompleted installs the records of a previous run. Only successful
// records are kept; they answer PreviouslyCompleted.
func (l *Ledger) RestoreCompleted(recs []StageRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.restored = l.restored[:0]
	for _, r := range recs {
		if r.Succeeded() {
			l.restored = append(l.restored, r)
		}
	}
}

// Restored returns a copy of the restored records.
func (l *Ledger) Restored() []StageRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.restored)
}

// PreviouslyCompleted returns the success record for name, looking at the
// restored records first and then at the current run.
func (l *Ledger) PreviouslyCompleted(name string) (StageRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.restored {
		if r.Name == name {
			return r, true
		}
	}
	for _, r := range l.records {
		if r.Name == name && r.Succeeded() {
			return r, true
		}
	}
	return StageRecord{}, false
}

// Completed returns the successful records of the current run.
func (l *Ledger) Completed() []StageRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []StageRecord
	for _, r := range l.records {
		if r.Succeeded() {
			out = append(out, r)
		}
	}
	return out
}

// SucceededSoFar reports whether no current record is a failure.
func (l *Ledger) SucceededSoFar() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !slices.ContainsFunc(l.records, StageRecord.Failed)
}

// WasStageSuccessful reports whether the most recent record named name is a success.
func (l *Ledger) WasStageSuccessful(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.records) - 1; i >= 0; i-- {
		if l.records[i].Name == name {
			return l.records[i].Succeeded()
		}
	}
	return false
}
