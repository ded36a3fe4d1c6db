package session

import "errors"

var (
	// ErrSessionNotFound indicates the session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrClientNotFound indicates the session's client doesn't exist.
	ErrClientNotFound = errors.New("client not found")
	// ErrInvalidInput indicates invalid session input.
	ErrInvalidInput = errors.New("invalid session input")
	// ErrClientNotInTherapy indicates the client is not in consultation or therapy.
	ErrClientNotInTherapy = errors.New("client is not in consultation or therapy")
	// ErrTherapistMismatch indicates the therapist is not the client's current therapist.
	ErrTherapistMismatch = errors.New("therapist is not assigned to the client")
	// ErrStaleSession indicates the session changed since it was read.
	ErrStaleSession = errors.New("session was modified concurrently")
)
