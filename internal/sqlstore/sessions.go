package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpggio/caseload/internal/domain/lifecycle"
	"github.com/rpggio/caseload/internal/domain/session"
	"github.com/rpggio/caseload/internal/repository"
)

var _ session.Repository = (*SessionRepository)(nil)

// SessionRepository stores therapy sessions.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, clinic_id, client_id, therapist_id, status, scheduled_at,
	started_at, completed_at, notes, created_at, updated_at`

// Create creates a new session
func (r *SessionRepository) Create(ctx context.Context, clinicID string, sess *session.Session) error {
	sess.ClinicID = clinicID
	_, err := r.db.exec(ctx, `INSERT INTO therapy_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		clinicID,
		sess.ClientID,
		sess.TherapistID,
		sess.Status,
		sess.ScheduledAt,
		sess.StartedAt,
		sess.CompletedAt,
		sess.Notes,
		sess.CreatedAt,
		sess.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, clinicID, id string) (*session.Session, error) {
	row := r.db.queryRow(ctx, `SELECT `+sessionColumns+` FROM therapy_sessions WHERE clinic_id = ? AND id = ?`, clinicID, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// Update writes sess if its stored status is still expected.
func (r *SessionRepository) Update(ctx context.Context, clinicID string, sess *session.Session, expected lifecycle.SessionStatus) error {
	result, err := r.db.exec(ctx, `
		UPDATE therapy_sessions
		SET status = ?, scheduled_at = ?, started_at = ?, completed_at = ?, notes = ?, updated_at = ?
		WHERE clinic_id = ? AND id = ? AND status = ?`,
		sess.Status,
		sess.ScheduledAt,
		sess.StartedAt,
		sess.CompletedAt,
		sess.Notes,
		sess.UpdatedAt,
		clinicID,
		sess.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := r.Get(ctx, clinicID, sess.ID); err != nil {
			return err
		}
		return repository.ErrConflict
	}
	return nil
}

// ListByClient returns a client's sessions by scheduled time.
func (r *SessionRepository) ListByClient(ctx context.Context, clinicID, clientID string) ([]session.Session, error) {
	rows, err := r.db.query(ctx, `SELECT `+sessionColumns+` FROM therapy_sessions
		WHERE clinic_id = ? AND client_id = ? ORDER BY scheduled_at, id`, clinicID, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return out, nil
}

func scanSession(s scanner) (*session.Session, error) {
	var sess session.Session
	var startedAt, completedAt sql.NullTime
	if err := s.Scan(
		&sess.ID,
		&sess.ClinicID,
		&sess.ClientID,
		&sess.TherapistID,
		&sess.Status,
		&sess.ScheduledAt,
		&startedAt,
		&completedAt,
		&sess.Notes,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		at := startedAt.Time
		sess.StartedAt = &at
	}
	if completedAt.Valid {
		at := completedAt.Time
		sess.CompletedAt = &at
	}
	return &sess, nil
}
