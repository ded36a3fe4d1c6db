package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/caseload/internal/domain/quota"
	"github.com/rpggio/caseload/internal/domain/tier"
	"github.com/rpggio/caseload/internal/repository"
	"github.com/stretchr/testify/require"
)

func newSubscription(clinicID string) *quota.Subscription {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	plan, _ := tier.Default().Lookup(tier.TierBeta)
	return &quota.Subscription{
		ClinicID:     clinicID,
		Tier:         tier.TierBeta,
		Cycle:        tier.CycleMonthly,
		Limits:       plan.Limits,
		BillingCents: plan.Price(tier.CycleMonthly),
		UsageDate:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestSubscriptionRepository_CreateGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewSubscriptionRepository(db)

	sub := newSubscription("clinic1")
	require.NoError(t, repo.Create(ctx, sub))
	require.Equal(t, int64(1), sub.Version)
	require.ErrorIs(t, repo.Create(ctx, newSubscription("clinic1")), repository.ErrConflict)

	loaded, err := repo.Get(ctx, "clinic1")
	require.NoError(t, err)
	require.Equal(t, tier.TierBeta, loaded.Tier)
	require.Equal(t, 5, loaded.Limits.ClientsPerDay)
	require.Equal(t, int64(4900), loaded.BillingCents)
	require.True(t, sub.UsageDate.Equal(loaded.UsageDate))

	_, err = repo.Get(ctx, "clinic2")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSubscriptionRepository_UpdateChecksVersion(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewSubscriptionRepository(db)
	require.NoError(t, repo.Create(ctx, newSubscription("clinic1")))

	first, err := repo.Get(ctx, "clinic1")
	require.NoError(t, err)
	second, err := repo.Get(ctx, "clinic1")
	require.NoError(t, err)

	first.Usage.ClientsToday = 1
	require.NoError(t, repo.Update(ctx, first, 1))
	require.Equal(t, int64(2), first.Version)

	second.Usage.ClientsToday = 1
	require.ErrorIs(t, repo.Update(ctx, second, 1), repository.ErrConflict)

	missing := newSubscription("clinic9")
	require.ErrorIs(t, repo.Update(ctx, missing, 1), repository.ErrNotFound)

	loaded, err := repo.Get(ctx, "clinic1")
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Usage.ClientsToday)
	require.Equal(t, int64(2), loaded.Version)
}
