package agent

import (
	"errors"
	"fmt"
)

// ErrIterationLimitExceeded is returned when a loop keeps requesting
// operations past its iteration cap.
var ErrIterationLimitExceeded = errors.New("iteration limit exceeded")

// IterationLimitError carries the trace of a run that hit the cap.
type IterationLimitError struct {
	Agent string
	Limit int
	Trace []Step
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("agent %s: %s after %d iterations", e.Agent, ErrIterationLimitExceeded, e.Limit)
}

// Is makes errors.Is(err, ErrIterationLimitExceeded) work.
func (e *IterationLimitError) Is(target error) bool {
	return target == ErrIterationLimitExceeded
}

// RunError carries the trace of a run that stopped on an error. The last
// step is always a StateError step.
type RunError struct {
	Agent string
	Trace []Step
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("agent %s: %v", e.Agent, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
