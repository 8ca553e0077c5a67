package results

import "time"

// Outcome is the terminal state of one stage execution.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailure  Outcome = "failure"
	OutcomeForgiven Outcome = "forgiven"
	OutcomeSkipped  Outcome = "skipped"
)

// StageRecord is created exactly once per stage execution and never mutated.
type StageRecord struct {
	Name        string        `json:"name"`
	Outcome     Outcome       `json:"outcome"`
	Description string        `json:"description,omitempty"`
	Duration    time.Duration `json:"duration"`
}

func (r StageRecord) Succeeded() bool { return r.Outcome == OutcomeSuccess }
func (r StageRecord) Failed() bool    { return r.Outcome == OutcomeFailure }
