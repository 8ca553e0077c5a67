package parallel

import (
	"encoding/json"
	"fmt"
)

// Step is a registered task bound to its positional arguments.
type Step struct {
	Task string            `json:"task"`
	Args []json.RawMessage `json:"args,omitempty"`
}

// NewStep binds args to task. Every argument must be JSON-encodable.
func NewStep(task string, args ...any) (Step, error) {
	raw, err := encodeArgs(args)
	if err != nil {
		return Step{}, fmt.Errorf("step %s: %w", task, err)
	}
	return Step{Task: task, Args: raw}, nil
}

// MustStep is like NewStep but panics on encoding errors.
func MustStep(task string, args ...any) Step {
	s, err := NewStep(task, args...)
	if err != nil {
		panic(err)
	}
	return s
}

func encodeArgs(args []any) ([]json.RawMessage, error) {
	if len(args) == 0 {
		return nil, nil
	}
	raw := make([]json.RawMessage, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encode argument %d: %w", i, err)
		}
		raw[i] = b
	}
	return raw, nil
}
