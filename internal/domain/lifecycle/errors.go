package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition indicates the requested edge is not in the workflow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrMissingReason indicates a reason is required for the transition.
	ErrMissingReason = errors.New("reason required for status transition")
)

// TransitionError describes a rejected client status edge.
type TransitionError struct {
	From    ClientStatus
	To      ClientStatus
	Trigger Trigger
}

func (e *TransitionError) Error() string {
	if e.Trigger != "" && e.Trigger != TriggerAdvance {
		return fmt.Sprintf("invalid status transition %s -> %s (%s)", e.From, e.To, e.Trigger)
	}
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// Is matches ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// SessionTransitionError describes a rejected session status edge.
type SessionTransitionError struct {
	From SessionStatus
	To   SessionStatus
}

func (e *SessionTransitionError) Error() string {
	return fmt.Sprintf("invalid session transition %s -> %s", e.From, e.To)
}

// Is matches ErrInvalidTransition.
func (e *SessionTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
