package assignment

import (
	"time"

	"github.com/rpggio/caseload/internal/domain/lifecycle"
)

// Config holds coordinator defaults.
type Config struct {
	// CallTimeout bounds each external call when a request sets no timeout.
	// Zero disables the bound.
	CallTimeout time.Duration
	// AutoConsultation moves a freshly assigned client straight to consultation.
	AutoConsultation bool
}

// AssignRequest assigns an unassigned client.
type AssignRequest struct {
	ClientID    string
	TherapistID string
	Notes       string
	// AutoConsultation overrides Config.AutoConsultation when set.
	AutoConsultation *bool
	Timeout          time.Duration
}

// UnassignRequest returns a client to the unassigned pool.
type UnassignRequest struct {
	ClientID string
	Reason   string
	Timeout  time.Duration
}

// TransferRequest moves the client of an assignment to another therapist.
type TransferRequest struct {
	AssignmentID   string
	NewTherapistID string
	Reason         string
	Notes          string
	Timeout        time.Duration
}

// StartOverRequest restarts a client's therapy with a different therapist.
type StartOverRequest struct {
	ClientID       string
	NewTherapistID string
	Reason         string
	Notes          string
	Timeout        time.Duration
}

// AdvanceRequest moves a client forward one workflow step.
type AdvanceRequest struct {
	ClientID string
	To       lifecycle.ClientStatus
	Reason   string
	Timeout  time.Duration
}
