package therapist

import (
	"errors"
	"time"
)

// ActivityStatus reflects whether a therapist finished setup and verification.
// It is owned by the identity side and read-only to assignment logic.
type ActivityStatus string

const (
	StatusActive       ActivityStatus = "active"
	StatusPendingSetup ActivityStatus = "pending_setup"
	StatusInactive     ActivityStatus = "inactive"
)

// Valid reports whether s is a known activity status.
func (s ActivityStatus) Valid() bool {
	switch s {
	case StatusActive, StatusPendingSetup, StatusInactive:
		return true
	}
	return false
}

// Therapist is a clinician clients can be assigned to.
type Therapist struct {
	ID             string         `json:"id"`
	ClinicID       string         `json:"clinic_id"`
	Name           string         `json:"name"`
	ActivityStatus ActivityStatus `json:"activity_status"`
	MaxClients     int            `json:"max_clients"`
	CurrentLoad    int            `json:"current_load"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Active reports whether clients may be assigned to the therapist.
func (t *Therapist) Active() bool {
	return t != nil && t.ActivityStatus == StatusActive
}

// HasCapacity reports whether one more client fits. MaxClients of zero means
// no cap.
func (t *Therapist) HasCapacity() bool {
	return t.MaxClients <= 0 || t.CurrentLoad < t.MaxClients
}

var (
	// ErrTherapistNotFound indicates the therapist doesn't exist.
	ErrTherapistNotFound = errors.New("therapist not found")
	// ErrInvalidInput indicates invalid therapist input.
	ErrInvalidInput = errors.New("invalid therapist input")
)
