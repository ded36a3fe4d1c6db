package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/caseload/internal/identity"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := map[string]identity.Role{
		"admin":          identity.RoleClinicAdmin,
		"ADMIN":          identity.RoleClinicAdmin,
		"clinic-owner":   identity.RoleClinicAdmin,
		"CLINIC":         identity.RoleClinicAdmin,
		"super_admin":    identity.RolePlatformAdmin,
		" Therapist ":    identity.RoleTherapist,
		"THERAPIST":      identity.RoleTherapist,
		"patient":        identity.RoleClient,
		"platform admin": identity.RolePlatformAdmin,
	}
	for in, want := range tests {
		got, err := identity.ParseRole(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
		require.True(t, got.Valid())
	}

	_, err := identity.ParseRole("janitor")
	require.ErrorIs(t, err, identity.ErrUnknownRole)
}

func TestCallerPermissions(t *testing.T) {
	admin := identity.Caller{ClinicID: "clinic1", Role: identity.RoleClinicAdmin}
	therapist := identity.Caller{ClinicID: "clinic1", Role: identity.RoleTherapist}
	client := identity.Caller{ClinicID: "clinic1", Role: identity.RoleClient}
	platform := identity.Caller{Role: identity.RolePlatformAdmin}

	require.True(t, admin.Can(identity.ActionAssignClients))
	require.True(t, therapist.Can(identity.ActionRecordSessions))
	require.False(t, therapist.Can(identity.ActionAssignClients))
	require.False(t, therapist.Can(identity.ActionManageSubscription))
	require.False(t, client.Can(identity.ActionViewClients))
	require.True(t, platform.Can(identity.ActionManageSubscription))
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	_, err := identity.Authorize(ctx, identity.ActionViewClients)
	require.ErrorIs(t, err, identity.ErrUnauthenticated)

	ctx = identity.WithCaller(ctx, identity.Caller{UserID: "u1", ClinicID: "clinic1", Role: identity.RoleTherapist})
	c, err := identity.Authorize(ctx, identity.ActionViewClients)
	require.NoError(t, err)
	require.Equal(t, "u1", c.UserID)

	_, err = identity.Authorize(ctx, identity.ActionAssignClients)
	require.ErrorIs(t, err, identity.ErrForbidden)
}

type staticKeys struct {
	records map[string]*identity.KeyRecord
	lookups int
}

func (s *staticKeys) LookupKey(_ context.Context, hash string) (*identity.KeyRecord, error) {
	s.lookups++
	rec, ok := s.records[hash]
	if !ok {
		return nil, errors.New("not found")
	}
	return rec, nil
}

func TestResolver_ResolvesAndCaches(t *testing.T) {
	ctx := context.Background()
	store := &staticKeys{records: map[string]*identity.KeyRecord{
		identity.HashKey("secret"): {ClinicID: "clinic1", UserID: "u1", Role: "ADMIN"},
		identity.HashKey("odd"):    {ClinicID: "clinic1", UserID: "u2", Role: "janitor"},
	}}
	r := identity.NewResolver(store, time.Minute)

	c, err := r.Resolve(ctx, "secret")
	require.NoError(t, err)
	require.Equal(t, identity.RoleClinicAdmin, c.Role)
	require.Equal(t, "clinic1", c.ClinicID)

	_, err = r.Resolve(ctx, "secret")
	require.NoError(t, err)
	require.Equal(t, 1, store.lookups)

	r.Invalidate()
	_, err = r.Resolve(ctx, "secret")
	require.NoError(t, err)
	require.Equal(t, 2, store.lookups)

	_, err = r.Resolve(ctx, "wrong")
	require.ErrorIs(t, err, identity.ErrInvalidKey)

	_, err = r.Resolve(ctx, "odd")
	require.ErrorIs(t, err, identity.ErrUnknownRole)

	_, err = r.Resolve(ctx, "")
	require.ErrorIs(t, err, identity.ErrInvalidKey)
}
