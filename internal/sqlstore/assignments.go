package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpggio/caseload/internal/domain/assignment"
	"github.com/rpggio/caseload/internal/repository"
)

var _ assignment.Repository = (*AssignmentRepository)(nil)

// AssignmentRepository stores the append-only assignment history.
type AssignmentRepository struct {
	db *DB
}

// NewAssignmentRepository creates a new AssignmentRepository
func NewAssignmentRepository(db *DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `id, clinic_id, client_id, therapist_id, previous_therapist_id, reason, notes, created_at`

// Create inserts an assignment record.
func (r *AssignmentRepository) Create(ctx context.Context, clinicID string, a *assignment.Assignment) error {
	a.ClinicID = clinicID
	_, err := r.db.exec(ctx, `INSERT INTO assignments (`+assignmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		clinicID,
		a.ClientID,
		a.TherapistID,
		a.PreviousTherapistID,
		a.Reason,
		a.Notes,
		a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

// Get retrieves an assignment by ID.
func (r *AssignmentRepository) Get(ctx context.Context, clinicID, id string) (*assignment.Assignment, error) {
	row := r.db.queryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE clinic_id = ? AND id = ?`, clinicID, id)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// Delete removes an assignment. It is only used to compensate a record whose
// client update never committed.
func (r *AssignmentRepository) Delete(ctx context.Context, clinicID, id string) error {
	result, err := r.db.exec(ctx, `DELETE FROM assignments WHERE clinic_id = ? AND id = ?`, clinicID, id)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListByClient returns a client's assignment history, oldest first.
func (r *AssignmentRepository) ListByClient(ctx context.Context, clinicID, clientID string) ([]assignment.Assignment, error) {
	rows, err := r.db.query(ctx, `SELECT `+assignmentColumns+` FROM assignments
		WHERE clinic_id = ? AND client_id = ? ORDER BY created_at, id`, clinicID, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []assignment.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAssignment(s scanner) (*assignment.Assignment, error) {
	var a assignment.Assignment
	var prev sql.NullString
	if err := s.Scan(
		&a.ID,
		&a.ClinicID,
		&a.ClientID,
		&a.TherapistID,
		&prev,
		&a.Reason,
		&a.Notes,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	if prev.Valid {
		a.PreviousTherapistID = &prev.String
	}
	return &a, nil
}
