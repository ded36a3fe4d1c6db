package session

import (
	"time"

	"github.com/rpggio/caseload/internal/domain/lifecycle"
)

// Session is a single therapy appointment between a client and a therapist.
type Session struct {
	ID          string                  `json:"id"`
	ClinicID    string                  `json:"clinic_id"`
	ClientID    string                  `json:"client_id"`
	TherapistID string                  `json:"therapist_id"`
	Status      lifecycle.SessionStatus `json:"status"`
	ScheduledAt time.Time               `json:"scheduled_at"`
	StartedAt   *time.Time              `json:"started_at,omitempty"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
	Notes       string                  `json:"notes,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// ScheduleRequest describes a new session. TherapistID defaults to the
// client's current therapist.
type ScheduleRequest struct {
	ClientID    string
	TherapistID string
	At          time.Time
	Notes       string
}

// TransitionRequest moves a session along its workflow. At is required when
// rescheduling. Progress is applied to the client on completion.
type TransitionRequest struct {
	SessionID string
	To        lifecycle.SessionStatus
	At        *time.Time
	Progress  *int
}

// TransitionResult holds the updated session and, on completion, the client
// totals.
type TransitionResult struct {
	Session       *Session `json:"session"`
	TotalSessions int      `json:"total_sessions,omitempty"`
	Progress      int      `json:"progress,omitempty"`
}
