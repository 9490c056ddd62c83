package queue

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition indicates a requested status change is not permitted
// by the job state machine.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError carries the rejected transition endpoints.
type TransitionError struct {
	JobID int64
	From  Status
	To    Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("job %d: transition %s -> %s not allowed", e.JobID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
