package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/caseload/internal/domain/activity"
)

var _ activity.Repository = (*ActivityRepository)(nil)

// ActivityRepository stores the activity log.
type ActivityRepository struct {
	db *DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Log inserts a new activity entry. An entry whose event was already logged
// is ignored.
func (r *ActivityRepository) Log(ctx context.Context, clinicID string, entry *activity.ActivityEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var details *string
	if entry.Details != "" {
		details = &entry.Details
	}

	var id int64
	err := r.db.queryRow(ctx, `
		INSERT INTO activity_log (
			clinic_id, event_id, client_id, activity_type, summary, details, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING id`,
		clinicID,
		entry.EventID,
		entry.ClientID,
		entry.ActivityType,
		entry.Summary,
		details,
		createdAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}

	entry.ID = id
	entry.ClinicID = clinicID
	entry.CreatedAt = createdAt
	return nil
}

// List returns activity entries matching the given filters, newest first.
func (r *ActivityRepository) List(ctx context.Context, clinicID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	query := `
		SELECT id, clinic_id, event_id, client_id, activity_type, summary, details, created_at
		FROM activity_log
		WHERE clinic_id = ?`
	args := []any{clinicID}
	var conditions []string

	if opts.ClientID != nil {
		conditions = append(conditions, "client_id = ?")
		args = append(args, *opts.ClientID)
	}
	if opts.ActivityType != nil {
		conditions = append(conditions, "activity_type = ?")
		args = append(args, *opts.ActivityType)
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	query, args = paginate(query, args, opts.Limit, opts.Offset)

	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var entries []activity.ActivityEntry
	for rows.Next() {
		var entry activity.ActivityEntry
		var clientID, details sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.ClinicID,
			&entry.EventID,
			&clientID,
			&entry.ActivityType,
			&entry.Summary,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		if clientID.Valid {
			entry.ClientID = &clientID.String
		}
		entry.Details = details.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}
	return entries, nil
}
