package activity

import "context"

// Repository provides persistence operations for activity entries. Log
// ignores an entry whose EventID was already stored.
type Repository interface {
	Log(ctx context.Context, clinicID string, entry *ActivityEntry) error
	List(ctx context.Context, clinicID string, opts ListActivityOptions) ([]ActivityEntry, error)
}
