package assignment

import (
	"time"

	"github.com/rpggio/caseload/internal/domain/client"
)

// Assignment links a client to a therapist at a point in time. Records are
// append-only; a transfer creates a new record naming the previous therapist.
type Assignment struct {
	ID                  string    `json:"id"`
	ClinicID            string    `json:"clinic_id"`
	ClientID            string    `json:"client_id"`
	TherapistID         string    `json:"therapist_id"`
	PreviousTherapistID *string   `json:"previous_therapist_id,omitempty"`
	Reason              string    `json:"reason,omitempty"`
	Notes               string    `json:"notes,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Result is the outcome of a successful coordinator operation.
type Result struct {
	Client     *client.Client `json:"client"`
	Assignment *Assignment    `json:"assignment,omitempty"`
}
