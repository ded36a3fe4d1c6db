package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/caseload/internal/domain/assignment"
	"github.com/rpggio/caseload/internal/domain/client"
	"github.com/rpggio/caseload/internal/domain/quota"
	"github.com/rpggio/caseload/internal/domain/session"
	"github.com/rpggio/caseload/internal/domain/therapist"
	"github.com/rpggio/caseload/internal/domain/tier"
	"github.com/rpggio/caseload/internal/identity"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Retryable    bool   `json:"retryable"`
	RolledBack   bool   `json:"rolled_back,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var recoveryHints = map[string]string{
	"TIMEOUT":                 "The change was rolled back; retry the same request",
	"UPSTREAM_FAILURE":        "The change was rolled back; retry the same request",
	"CONCURRENT_MODIFICATION": "Reload the client and retry",
	"COMPENSATION_FAILED":     "The change was not undone; reload the client with client_history before acting again",
	"MISSING_REASON":          "Provide a reason",
	"INVALID_TRANSITION":      "Check the client's current status; see caseload://docs/workflow",
	"QUOTA_EXCEEDED":          "Wait for the daily reset or upgrade the tier with change_tier",
	"SUBSCRIPTION_NOT_FOUND":  "Subscribe the clinic to a tier first",
	"THERAPIST_NOT_ACTIVE":    "The therapist must finish setup before taking clients",
	"THERAPIST_AT_CAPACITY":   "Choose another therapist",
	"SAME_THERAPIST":          "Choose a different therapist",
	"ASSIGNMENT_NOT_FOUND":    "Use client_history to find the current assignment id",
	"CLIENT_NOT_FOUND":        "Check the client id",
	"THERAPIST_NOT_FOUND":     "Check the therapist id",
	"SESSION_NOT_FOUND":       "Check the session id",
	"CLIENT_NOT_IN_THERAPY":   "Sessions require a client in consultation or therapy",
	"THERAPIST_MISMATCH":      "Sessions are booked with the client's current therapist",
	"SUBSCRIPTION_EXISTS":     "Use change_tier to switch plans",
	"UNKNOWN_TIER":            "Call list_tiers for valid tiers",
	"UNAUTHENTICATED":         "Provide a valid API key",
	"FORBIDDEN":               "Ask a clinic admin to perform this action",
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	code := codeOf(err)
	apiErr := &APIError{
		Code:         code,
		Message:      err.Error(),
		Retryable:    assignment.Retryable(err),
		RecoveryHint: recoveryHints[code],
	}
	var opErr *assignment.OpError
	if errors.As(err, &opErr) {
		apiErr.RolledBack = opErr.RolledBack
	}
	return apiErr
}

func codeOf(err error) string {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated), errors.Is(err, identity.ErrInvalidKey):
		return "UNAUTHENTICATED"
	case errors.Is(err, identity.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, session.ErrSessionNotFound):
		return "SESSION_NOT_FOUND"
	case errors.Is(err, session.ErrClientNotInTherapy):
		return "CLIENT_NOT_IN_THERAPY"
	case errors.Is(err, session.ErrTherapistMismatch):
		return "THERAPIST_MISMATCH"
	case errors.Is(err, session.ErrStaleSession):
		return "CONCURRENT_MODIFICATION"
	case errors.Is(err, session.ErrClientNotFound):
		return "CLIENT_NOT_FOUND"
	case errors.Is(err, quota.ErrSubscriptionExists):
		return "SUBSCRIPTION_EXISTS"
	case errors.Is(err, tier.ErrUnknownTier), errors.Is(err, tier.ErrUnknownCycle):
		return "UNKNOWN_TIER"
	case errors.Is(err, session.ErrInvalidInput), errors.Is(err, client.ErrInvalidInput),
		errors.Is(err, therapist.ErrInvalidInput), errors.Is(err, quota.ErrInvalidAmount),
		errors.Is(err, quota.ErrUnknownMetric), errors.Is(err, errInvalidArgument):
		return "INVALID_INPUT"
	}
	return assignment.Code(err)
}
