package lifecycle

import "strings"

// ValidateTransition validates a forward workflow edge. It is defined for
// every pair of statuses, including unknown ones, and never panics.
func ValidateTransition(from, to ClientStatus) error {
	return Validate(Transition{From: from, To: to, Trigger: TriggerAdvance})
}

// ValidateReassignment validates the start-over edge from any non-terminal
// status back to consultation.
func ValidateReassignment(from ClientStatus, reason string) error {
	return Validate(Transition{From: from, To: StatusConsultation, Trigger: TriggerReassign, Reason: reason})
}

// ValidateRelease validates returning an assigned client to the unassigned pool.
func ValidateRelease(from ClientStatus) error {
	return Validate(Transition{From: from, To: StatusNew, Trigger: TriggerRelease})
}

// Validate checks a transition request against the client workflow.
func Validate(t Transition) error {
	trigger := t.Trigger
	if trigger == "" {
		trigger = TriggerAdvance
	}

	valid := false
	if t.From.Valid() && t.To.Valid() && !t.From.Terminal() {
		switch trigger {
		case TriggerAdvance:
			valid = advanceEdge(t.From, t.To)
		case TriggerReassign:
			valid = t.To == StatusConsultation
		case TriggerRelease:
			valid = t.To == StatusNew && t.From != StatusNew
		}
	}

	if !valid {
		return &TransitionError{From: t.From, To: t.To, Trigger: trigger}
	}

	if trigger == TriggerReassign && strings.TrimSpace(t.Reason) == "" {
		return ErrMissingReason
	}

	return nil
}

func advanceEdge(from, to ClientStatus) bool {
	switch from {
	case StatusNew:
		return to == StatusAssigned
	case StatusAssigned:
		return to == StatusConsultation
	case StatusConsultation:
		return to == StatusTherapy
	case StatusTherapy:
		return to == StatusDone
	}
	return false
}

// ValidateSessionTransition validates a therapy session edge.
func ValidateSessionTransition(from, to SessionStatus) error {
	valid := false
	switch from {
	case SessionNew:
		switch to {
		case SessionScheduled, SessionCancelled:
			valid = true
		}
	case SessionScheduled:
		switch to {
		case SessionStarted, SessionCancelled, SessionNoShow:
			valid = true
		}
	case SessionStarted:
		switch to {
		case SessionCompleted, SessionCancelled:
			valid = true
		}
	case SessionCancelled, SessionNoShow:
		valid = to == SessionScheduled
	}

	if !valid {
		return &SessionTransitionError{From: from, To: to}
	}
	return nil
}
