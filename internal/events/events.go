// Package events carries the outcome notifications of the assignment
// workflow to in-process consumers such as the activity log and metrics.
package events

import (
	"time"

	"github.com/rpggio/caseload/internal/domain/lifecycle"
	"github.com/rpggio/caseload/internal/domain/quota"
)

// Kind names an event type.
type Kind string

const (
	KindAssignmentSucceeded Kind = "assignment.succeeded"
	KindAssignmentFailed    Kind = "assignment.failed"
	KindStatusTransitioned  Kind = "status.transitioned"
	KindUsageAlertRaised    Kind = "usage.alert_raised"
	KindSessionTransitioned Kind = "session.transitioned"
)

// Payload is implemented by every event body.
type Payload interface {
	Kind() Kind
}

// Envelope wraps a payload with its identity and origin.
type Envelope struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	ClinicID   string    `json:"clinic_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    Payload   `json:"payload"`
}

// ClientID returns the client the event concerns, if any.
func (e Envelope) ClientID() string {
	switch p := e.Payload.(type) {
	case AssignmentSucceeded:
		return p.ClientID
	case AssignmentFailed:
		return p.ClientID
	case StatusTransitioned:
		return p.ClientID
	case SessionTransitioned:
		return p.ClientID
	}
	return ""
}

// AssignmentSucceeded reports a committed assignment mutation.
type AssignmentSucceeded struct {
	Op                  string  `json:"op"`
	ClientID            string  `json:"client_id"`
	TherapistID         string  `json:"therapist_id,omitempty"`
	PreviousTherapistID *string `json:"previous_therapist_id,omitempty"`
	AssignmentID        string  `json:"assignment_id,omitempty"`
	Reason              string  `json:"reason,omitempty"`
}

func (AssignmentSucceeded) Kind() Kind { return KindAssignmentSucceeded }

// AssignmentFailed reports a rejected or aborted assignment mutation.
type AssignmentFailed struct {
	Op          string `json:"op"`
	ClientID    string `json:"client_id"`
	TherapistID string `json:"therapist_id,omitempty"`
	Code        string `json:"code"`
	Reason      string `json:"reason"`
	RolledBack  bool   `json:"rolled_back"`
}

func (AssignmentFailed) Kind() Kind { return KindAssignmentFailed }

// StatusTransitioned reports a client status change.
type StatusTransitioned struct {
	ClientID string                 `json:"client_id"`
	From     lifecycle.ClientStatus `json:"from"`
	To       lifecycle.ClientStatus `json:"to"`
	Trigger  lifecycle.Trigger      `json:"trigger"`
	Reason   string                 `json:"reason,omitempty"`
}

func (StatusTransitioned) Kind() Kind { return KindStatusTransitioned }

// UsageAlertRaised reports a quota metric crossing into a new alert grade.
type UsageAlertRaised struct {
	Alert quota.UsageAlert `json:"alert"`
}

func (UsageAlertRaised) Kind() Kind { return KindUsageAlertRaised }

// SessionTransitioned reports a therapy session status change.
type SessionTransitioned struct {
	SessionID string                  `json:"session_id"`
	ClientID  string                  `json:"client_id"`
	From      lifecycle.SessionStatus `json:"from"`
	To        lifecycle.SessionStatus `json:"to"`
}

func (SessionTransitioned) Kind() Kind { return KindSessionTransitioned }
