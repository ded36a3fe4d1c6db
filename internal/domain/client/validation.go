package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rpggio/caseload/internal/domain/lifecycle"
)

var (
	// ErrClientNotFound indicates the client doesn't exist.
	ErrClientNotFound = errors.New("client not found")
	// ErrInvalidInput indicates invalid client input.
	ErrInvalidInput = errors.New("invalid client input")
	// ErrInvariant indicates a client record breaks a data invariant.
	ErrInvariant = errors.New("client invariant violated")
)

// ValidateCreateInput validates fields required to create a client.
func ValidateCreateInput(clinicID, name string) error {
	if strings.TrimSpace(clinicID) == "" || strings.TrimSpace(name) == "" {
		return ErrInvalidInput
	}
	return nil
}

// CheckInvariants verifies a client's internal consistency: a therapist is
// set exactly when the client has left the unassigned state, and progress is
// a percentage.
func CheckInvariants(c *Client) error {
	if c == nil {
		return fmt.Errorf("%w: nil client", ErrInvariant)
	}
	if !c.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvariant, c.Status)
	}
	hasTherapist := c.AssignedTherapistID != nil && *c.AssignedTherapistID != ""
	if hasTherapist != (c.Status != lifecycle.StatusNew) {
		return fmt.Errorf("%w: status %s with therapist %q", ErrInvariant, c.Status, c.TherapistID())
	}
	if c.Progress < 0 || c.Progress > 100 {
		return fmt.Errorf("%w: progress %d", ErrInvariant, c.Progress)
	}
	if c.TotalSessions < 0 {
		return fmt.Errorf("%w: total sessions %d", ErrInvariant, c.TotalSessions)
	}
	return nil
}

// ClampProgress bounds a progress value to 0..100.
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
