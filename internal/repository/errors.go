// Package repository holds the errors every store returns. Domain packages
// declare their own ports and translate these into domain errors.
package repository

import "errors"

var (
	// ErrNotFound means no row matched the clinic and id.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a version or expected-status check failed, or a
	// unique key is already taken.
	ErrConflict = errors.New("conflict: row changed or already exists")

	// ErrForeignKeyViolation means a referenced client or therapist is missing.
	ErrForeignKeyViolation = errors.New("foreign key violation")
)
