package stage

import (
	"errors"
	"fmt"
)

// ErrStepFailed matches every *StepFailedError.
var ErrStepFailed = errors.New("step failed")

// StepFailedError is returned by Run when a stage failure is not forgiven.
type StepFailedError struct {
	Stage string
	Err   error
}

func (e *StepFailedError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StepFailedError) Unwrap() error { return e.Err }

func (e *StepFailedError) Is(target error) bool { return target == ErrStepFailed }
