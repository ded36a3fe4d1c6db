package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpggio/caseload/internal/domain/assignment"
	"github.com/rpggio/caseload/internal/domain/therapist"
	"github.com/rpggio/caseload/internal/repository"
)

var (
	_ therapist.Repository      = (*TherapistRepository)(nil)
	_ assignment.TherapistStore     = (*TherapistRepository)(nil)
)

// TherapistRepository stores therapists. CurrentLoad is derived from the
// clients currently in the therapist's care.
type TherapistRepository struct {
	db *DB
}

// NewTherapistRepository creates a new TherapistRepository
func NewTherapistRepository(db *DB) *TherapistRepository {
	return &TherapistRepository{db: db}
}

const therapistSelect = `
	SELECT t.id, t.clinic_id, t.name, t.activity_status, t.max_clients, t.created_at,
		(SELECT COUNT(*) FROM clients c
		 WHERE c.clinic_id = t.clinic_id AND c.therapist_id = t.id
		   AND c.status IN ('assigned', 'consultation', 'therapy')) AS current_load
	FROM therapists t`

// Create inserts a therapist.
func (r *TherapistRepository) Create(ctx context.Context, clinicID string, t *therapist.Therapist) error {
	t.ClinicID = clinicID
	_, err := r.db.exec(ctx, `
		INSERT INTO therapists (id, clinic_id, name, activity_status, max_clients, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID,
		clinicID,
		t.Name,
		t.ActivityStatus,
		t.MaxClients,
		t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create therapist: %w", err)
	}
	return nil
}

// Get retrieves a therapist with its current load.
func (r *TherapistRepository) Get(ctx context.Context, clinicID, id string) (*therapist.Therapist, error) {
	row := r.db.queryRow(ctx, therapistSelect+` WHERE t.clinic_id = ? AND t.id = ?`, clinicID, id)
	t, err := scanTherapist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get therapist: %w", err)
	}
	return t, nil
}

// SetActivityStatus updates the activity status.
func (r *TherapistRepository) SetActivityStatus(ctx context.Context, clinicID, id string, status therapist.ActivityStatus) error {
	result, err := r.db.exec(ctx, `UPDATE therapists SET activity_status = ? WHERE clinic_id = ? AND id = ?`, status, clinicID, id)
	if err != nil {
		return fmt.Errorf("failed to update therapist: %w", err)
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

// List returns the therapists of a clinic.
func (r *TherapistRepository) List(ctx context.Context, clinicID string) ([]therapist.Therapist, error) {
	rows, err := r.db.query(ctx, therapistSelect+` WHERE t.clinic_id = ? ORDER BY t.created_at, t.id`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("failed to list therapists: %w", err)
	}
	defer rows.Close()

	var out []therapist.Therapist
	for rows.Next() {
		t, err := scanTherapist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan therapist: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTherapist(s scanner) (*therapist.Therapist, error) {
	var t therapist.Therapist
	if err := s.Scan(
		&t.ID,
		&t.ClinicID,
		&t.Name,
		&t.ActivityStatus,
		&t.MaxClients,
		&t.CreatedAt,
		&t.CurrentLoad,
	); err != nil {
		return nil, err
	}
	return &t, nil
}
