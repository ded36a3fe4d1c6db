package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/caseload/internal/identity"
	"github.com/rpggio/caseload/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyRepository_ResolvesThroughIdentity(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewAPIKeyRepository(db)

	rec := identity.KeyRecord{KeyHash: identity.HashKey("k-123"), ClinicID: "clinic1", UserID: "u1", Role: "clinic-owner"}
	require.NoError(t, repo.Issue(ctx, rec, "front desk"))
	require.ErrorIs(t, repo.Issue(ctx, rec, "again"), repository.ErrConflict)

	resolver := identity.NewResolver(repo, time.Minute)
	caller, err := resolver.Resolve(ctx, "k-123")
	require.NoError(t, err)
	require.Equal(t, identity.Caller{UserID: "u1", ClinicID: "clinic1", Role: identity.RoleClinicAdmin}, caller)

	var lastUsed *time.Time
	require.NoError(t, db.QueryRow("SELECT last_used FROM api_keys WHERE key_hash = ?", rec.KeyHash).Scan(&lastUsed))
	require.NotNil(t, lastUsed)

	require.NoError(t, repo.Revoke(ctx, rec.KeyHash))
	require.ErrorIs(t, repo.Revoke(ctx, rec.KeyHash), repository.ErrNotFound)
	_, err = repo.LookupKey(ctx, rec.KeyHash)
	require.ErrorIs(t, err, repository.ErrNotFound)
}
