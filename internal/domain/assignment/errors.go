package assignment

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpggio/caseload/internal/domain/client"
	"github.com/rpggio/caseload/internal/domain/lifecycle"
	"github.com/rpggio/caseload/internal/domain/quota"
	"github.com/rpggio/caseload/internal/domain/therapist"
	"github.com/rpggio/caseload/internal/repository"
)

var (
	// ErrInvalidTransition indicates the status edge is not in the workflow.
	ErrInvalidTransition = lifecycle.ErrInvalidTransition
	// ErrMissingReason indicates a transfer or start-over without a reason.
	ErrMissingReason = lifecycle.ErrMissingReason
	// ErrQuotaExceeded indicates the clinic is out of quota.
	ErrQuotaExceeded = quota.ErrQuotaExceeded
	// ErrClientNotFound indicates the client doesn't exist.
	ErrClientNotFound = client.ErrClientNotFound
	// ErrTherapistNotFound indicates the therapist doesn't exist.
	ErrTherapistNotFound = therapist.ErrTherapistNotFound

	// ErrTherapistNotActive indicates the therapist has not completed setup.
	ErrTherapistNotActive = errors.New("therapist is not active")
	// ErrTherapistAtCapacity indicates the therapist has no free client slot.
	ErrTherapistAtCapacity = errors.New("therapist is at capacity")
	// ErrSameTherapist indicates the client is already with that therapist.
	ErrSameTherapist = errors.New("client is already assigned to this therapist")
	// ErrAssignmentNotFound indicates the assignment doesn't exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrInvalidInput indicates missing identifiers.
	ErrInvalidInput = errors.New("invalid assignment input")
	// ErrConcurrentModification indicates another operation on the client is
	// in flight or the client changed underneath the request.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrUpstreamFailure indicates a persistence call failed.
	ErrUpstreamFailure = errors.New("upstream failure")
	// ErrTimeout indicates an external call exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
	// ErrCompensationFailed indicates a failed operation could not be undone:
	// the client was not restored and the new assignment record was kept.
	ErrCompensationFailed = errors.New("compensation failed")
)

// Kind groups errors by how a caller should react.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindUpstream     Kind = "upstream"
	KindTimeout      Kind = "timeout"
	KindInconsistent Kind = "inconsistent"
)

// OpError describes a failed coordinator operation.
type OpError struct {
	Op         string
	ClientID   string
	Kind       Kind
	RolledBack bool
	Err        error
}

func (e *OpError) Error() string {
	if e.ClientID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s client %s: %v", e.Op, e.ClientID, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// KindOf classifies err.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrCompensationFailed):
		return KindInconsistent
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrUpstreamFailure):
		return KindUpstream
	case errors.Is(err, ErrConcurrentModification):
		return KindConflict
	}
	return KindValidation
}

// Retryable reports whether the caller may retry the same request.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindInconsistent:
		return false
	}
	return true
}

// Code returns a stable machine-readable code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCompensationFailed):
		return "COMPENSATION_FAILED"
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, ErrUpstreamFailure):
		return "UPSTREAM_FAILURE"
	case errors.Is(err, ErrConcurrentModification):
		return "CONCURRENT_MODIFICATION"
	case errors.Is(err, ErrMissingReason):
		return "MISSING_REASON"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrQuotaExceeded):
		return "QUOTA_EXCEEDED"
	case errors.Is(err, quota.ErrSubscriptionNotFound):
		return "SUBSCRIPTION_NOT_FOUND"
	case errors.Is(err, ErrTherapistNotActive):
		return "THERAPIST_NOT_ACTIVE"
	case errors.Is(err, ErrTherapistAtCapacity):
		return "THERAPIST_AT_CAPACITY"
	case errors.Is(err, ErrSameTherapist):
		return "SAME_THERAPIST"
	case errors.Is(err, ErrAssignmentNotFound):
		return "ASSIGNMENT_NOT_FOUND"
	case errors.Is(err, ErrClientNotFound):
		return "CLIENT_NOT_FOUND"
	case errors.Is(err, ErrTherapistNotFound):
		return "THERAPIST_NOT_FOUND"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	}
	return "INTERNAL_ERROR"
}

// classify translates a persistence error. notFound replaces not-found
// results when non-nil.
func classify(op string, err error, notFound error) error {
	switch {
	case notFound != nil && (errors.Is(err, repository.ErrNotFound) || errors.Is(err, notFound)):
		return notFound
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %w", ErrTimeout, op, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %s: %w", ErrConcurrentModification, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstreamFailure, op, err)
}
