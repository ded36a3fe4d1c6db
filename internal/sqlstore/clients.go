package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/caseload/internal/domain/assignment"
	"github.com/rpggio/caseload/internal/domain/client"
	"github.com/rpggio/caseload/internal/domain/session"
	"github.com/rpggio/caseload/internal/repository"
)

var (
	_ client.Repository      = (*ClientRepository)(nil)
	_ assignment.ClientStore = (*ClientRepository)(nil)
	_ session.ClientStore    = (*ClientRepository)(nil)
)

// ClientRepository stores clients.
type ClientRepository struct {
	db  *DB
	now func() time.Time
}

// NewClientRepository creates a new ClientRepository
func NewClientRepository(db *DB) *ClientRepository {
	return &ClientRepository{db: db, now: time.Now}
}

const clientColumns = `id, clinic_id, name, status, therapist_id, join_date,
	total_sessions, progress, last_session, updated_at`

// Create inserts a client.
func (r *ClientRepository) Create(ctx context.Context, clinicID string, c *client.Client) error {
	c.ClinicID = clinicID
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = r.now().UTC()
	}
	_, err := r.db.exec(ctx, `INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		clinicID,
		c.Name,
		c.Status,
		c.AssignedTherapistID,
		c.JoinDate,
		c.TotalSessions,
		c.Progress,
		c.LastSession,
		c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// Get retrieves a client by ID.
func (r *ClientRepository) Get(ctx context.Context, clinicID, id string) (*client.Client, error) {
	row := r.db.queryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE clinic_id = ? AND id = ?`, clinicID, id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return c, nil
}

// Update applies a patch and returns the stored record.
func (r *ClientRepository) Update(ctx context.Context, clinicID, id string, patch client.Patch) (*client.Client, error) {
	sets := []string{"updated_at = ?"}
	args := []any{r.now().UTC()}

	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	switch {
	case patch.TherapistID != nil:
		sets = append(sets, "therapist_id = ?")
		args = append(args, *patch.TherapistID)
	case patch.ClearTherapist:
		sets = append(sets, "therapist_id = NULL")
	}
	switch {
	case patch.TotalSessions != nil:
		sets = append(sets, "total_sessions = ?")
		args = append(args, *patch.TotalSessions+patch.AddSessions)
	case patch.AddSessions != 0:
		sets = append(sets, "total_sessions = total_sessions + ?")
		args = append(args, patch.AddSessions)
	}
	if patch.Progress != nil {
		sets = append(sets, "progress = ?")
		args = append(args, client.ClampProgress(*patch.Progress))
	}
	if patch.LastSession != nil {
		sets = append(sets, "last_session = ?")
		args = append(args, *patch.LastSession)
	}
	args = append(args, clinicID, id)

	result, err := r.db.exec(ctx, `UPDATE clients SET `+strings.Join(sets, ", ")+` WHERE clinic_id = ? AND id = ?`, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, repository.ErrForeignKeyViolation
		}
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, repository.ErrNotFound
	}
	return r.Get(ctx, clinicID, id)
}

// List returns clients of a clinic ordered by join date.
func (r *ClientRepository) List(ctx context.Context, clinicID string, opts client.ListOptions) ([]client.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE clinic_id = ?`
	args := []any{clinicID}

	if opts.Status != nil {
		query += " AND status = ?"
		args = append(args, *opts.Status)
	}
	if opts.TherapistID != nil {
		query += " AND therapist_id = ?"
		args = append(args, *opts.TherapistID)
	}
	query += " ORDER BY join_date, id"
	query, args = paginate(query, args, opts.Limit, opts.Offset)

	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var out []client.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(s scanner) (*client.Client, error) {
	var c client.Client
	var therapistID sql.NullString
	var lastSession sql.NullTime
	err := s.Scan(
		&c.ID,
		&c.ClinicID,
		&c.Name,
		&c.Status,
		&therapistID,
		&c.JoinDate,
		&c.TotalSessions,
		&c.Progress,
		&lastSession,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if therapistID.Valid {
		c.AssignedTherapistID = &therapistID.String
	}
	if lastSession.Valid {
		at := lastSession.Time
		c.LastSession = &at
	}
	return &c, nil
}

func paginate(query string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	}
	return query, args
}
