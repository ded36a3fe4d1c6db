package activity

import (
	"errors"
	"time"
)

// ActivityType represents the type of activity event
type ActivityType string

const (
	TypeAssignmentSucceeded ActivityType = "assignment_succeeded"
	TypeAssignmentFailed    ActivityType = "assignment_failed"
	TypeStatusTransition    ActivityType = "status_transition"
	TypeUsageAlert          ActivityType = "usage_alert"
	TypeSessionTransition   ActivityType = "session_transition"
)

// ActivityEntry represents an event in the activity log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	ClinicID     string       `json:"clinic_id"`
	EventID      string       `json:"event_id"`
	ClientID     *string      `json:"client_id,omitempty"`
	ActivityType ActivityType `json:"type"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time    `json:"created_at"`
}

var (
	// ErrInvalidInput indicates an unusable activity entry.
	ErrInvalidInput = errors.New("invalid activity input")
)
