package lifecycle

// ClientStatus is the therapy workflow state of a client.
type ClientStatus string

const (
	StatusNew          ClientStatus = "new"
	StatusAssigned     ClientStatus = "assigned"
	StatusConsultation ClientStatus = "consultation"
	StatusTherapy      ClientStatus = "therapy"
	StatusDone         ClientStatus = "done"
)

// ClientStatuses lists every client status in workflow order.
var ClientStatuses = []ClientStatus{
	StatusNew,
	StatusAssigned,
	StatusConsultation,
	StatusTherapy,
	StatusDone,
}

// Valid reports whether s is a known client status.
func (s ClientStatus) Valid() bool {
	switch s {
	case StatusNew, StatusAssigned, StatusConsultation, StatusTherapy, StatusDone:
		return true
	}
	return false
}

// Terminal reports whether no edge leaves s.
func (s ClientStatus) Terminal() bool {
	return s == StatusDone
}

// Trigger names why a transition is requested. Some edges are only legal for
// a specific trigger.
type Trigger string

const (
	// TriggerAdvance moves a client forward along the workflow.
	TriggerAdvance Trigger = "advance"
	// TriggerReassign restarts consultation with a new therapist.
	TriggerReassign Trigger = "reassign"
	// TriggerRelease returns a client to the unassigned pool.
	TriggerRelease Trigger = "release"
)

// Transition is a requested client status change.
type Transition struct {
	From    ClientStatus
	To      ClientStatus
	Trigger Trigger
	Reason  string
}

// SessionStatus is the state of an individual therapy session.
type SessionStatus string

const (
	SessionNew       SessionStatus = "new"
	SessionScheduled SessionStatus = "scheduled"
	SessionStarted   SessionStatus = "started"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
	SessionNoShow    SessionStatus = "no_show"
)

// SessionStatuses lists every session status.
var SessionStatuses = []SessionStatus{
	SessionNew,
	SessionScheduled,
	SessionStarted,
	SessionCompleted,
	SessionCancelled,
	SessionNoShow,
}

// Valid reports whether s is a known session status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionNew, SessionScheduled, SessionStarted, SessionCompleted, SessionCancelled, SessionNoShow:
		return true
	}
	return false
}

// Terminal reports whether no edge leaves s.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted
}
