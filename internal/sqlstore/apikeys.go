package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/caseload/internal/identity"
	"github.com/rpggio/caseload/internal/repository"
)

var _ identity.KeyStore = (*APIKeyRepository)(nil)

// APIKeyRepository stores hashed API keys.
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Issue stores a grant for a key that has already been hashed.
func (r *APIKeyRepository) Issue(ctx context.Context, rec identity.KeyRecord, description string) error {
	_, err := r.db.exec(ctx, `
		INSERT INTO api_keys (key_hash, clinic_id, user_id, role, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.KeyHash, rec.ClinicID, rec.UserID, rec.Role, description, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to issue api key: %w", err)
	}
	return nil
}

// LookupKey returns the grant for a key hash and records its use.
func (r *APIKeyRepository) LookupKey(ctx context.Context, keyHash string) (*identity.KeyRecord, error) {
	rec := identity.KeyRecord{KeyHash: keyHash}
	err := r.db.queryRow(ctx, `SELECT clinic_id, user_id, role FROM api_keys WHERE key_hash = ?`, keyHash).
		Scan(&rec.ClinicID, &rec.UserID, &rec.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}
	if _, err := r.db.exec(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now().UTC(), keyHash); err != nil {
		return nil, fmt.Errorf("failed to touch api key: %w", err)
	}
	return &rec, nil
}

// Revoke deletes a key.
func (r *APIKeyRepository) Revoke(ctx context.Context, keyHash string) error {
	result, err := r.db.exec(ctx, `DELETE FROM api_keys WHERE key_hash = ?`, keyHash)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
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
