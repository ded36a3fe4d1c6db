package quota_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/caseload/internal/domain/quota"
	"github.com/rpggio/caseload/internal/domain/tier"
	"github.com/rpggio/caseload/internal/repository"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type memSubscriptions struct {
	mu        sync.Mutex
	subs      map[string]quota.Subscription
	conflicts int
	updates   int
}

func newMemSubscriptions() *memSubscriptions {
	return &memSubscriptions{subs: map[string]quota.Subscription{}}
}

func (m *memSubscriptions) Create(_ context.Context, sub *quota.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[sub.ClinicID]; ok {
		return repository.ErrConflict
	}
	sub.Version = 1
	m.subs[sub.ClinicID] = *sub
	return nil
}

func (m *memSubscriptions) Get(_ context.Context, clinicID string) (*quota.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[clinicID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sub, nil
}

func (m *memSubscriptions) Update(_ context.Context, sub *quota.Subscription, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.conflicts > 0 {
		m.conflicts--
		return repository.ErrConflict
	}
	stored, ok := m.subs[sub.ClinicID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return repository.ErrConflict
	}
	sub.Version = expectedVersion + 1
	m.subs[sub.ClinicID] = *sub
	return nil
}

type recordedAlerts struct {
	mu     sync.Mutex
	alerts []quota.UsageAlert
}

func (r *recordedAlerts) PublishAlerts(_ context.Context, _ string, alerts []quota.UsageAlert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alerts...)
}

type clock struct{ at time.Time }

func (c *clock) now() time.Time { return c.at }

func newGate(t *testing.T, repo *memSubscriptions, alerts quota.AlertPublisher, c *clock) *quota.Gate {
	t.Helper()
	g := quota.NewGate(repo, tier.Default(), alerts, nil, quota.WithClock(c.now))
	_, err := g.Subscribe(context.Background(), "clinic1", tier.TierBeta, tier.CycleMonthly)
	require.NoError(t, err)
	return g
}

func TestGate_DeniesAtDailyClientLimit(t *testing.T) {
	ctx := context.Background()
	c := &clock{at: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	g := newGate(t, newMemSubscriptions(), nil, c)

	applied, err := g.Increment(ctx, "clinic1", quota.MetricClientsToday, 5)
	require.NoError(t, err)
	require.Equal(t, 5, applied)

	err = g.Check(ctx, "clinic1", quota.MetricClientsToday)
	require.ErrorIs(t, err, quota.ErrQuotaExceeded)
	var exceeded *quota.ExceededError
	require.ErrorAs(t, err, &exceeded)
	require.Equal(t, quota.MetricClientsToday, exceeded.Metric)
	require.Equal(t, 5, exceeded.Usage)
	require.Equal(t, 5, exceeded.Limit)

	_, err = g.Increment(ctx, "clinic1", quota.MetricClientsToday, 1)
	require.ErrorIs(t, err, quota.ErrQuotaExceeded)

	sub, err := g.Get(ctx, "clinic1")
	require.NoError(t, err)
	require.Equal(t, 5, sub.Usage.ClientsToday)
}

func TestGate_IncrementClampsAtLimit(t *testing.T) {
	ctx := context.Background()
	c := &clock{at: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	g := newGate(t, newMemSubscriptions(), nil, c)

	applied, err := g.Increment(ctx, "clinic1", quota.MetricScriptsToday, 3)
	require.NoError(t, err)
	require.Equal(t, 3, applied)

	applied, err = g.Increment(ctx, "clinic1", quota.MetricScriptsToday, 10)
	require.NoError(t, err)
	require.Equal(t, 2, applied)

	sub, err := g.Get(ctx, "clinic1")
	require.NoError(t, err)
	require.Equal(t, 5, sub.Usage.ScriptsToday)
	require.Equal(t, 5, sub.Usage.ScriptsThisMonth)
}

func TestGate_ConcurrentIncrementsNeverOvershoot(t *testing.T) {
	ctx := context.Background()
	c := &clock{at: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	g := newGate(t, newMemSubscriptions(), nil, c)

	var (
		mu      sync.Mutex
		granted int
	)
	var eg errgroup.Group
	for i := 0; i < 50; i++ {
		eg.Go(func() error {
			applied, err := g.Increment(ctx, "clinic1", quota.MetricClientsToday, 1)
			if errors.Is(err, quota.ErrQuotaExceeded) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			granted += applied
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	sub, err := g.Get(ctx, "clinic1")
	require.NoError(t, err)
	require.Equal(t, 5, granted)
	require.Equal(t, 5, sub.Usage.ClientsToday)
	require.LessOrEqual(t, sub.Usage.ClientsToday, sub.Limits.ClientsPerDay)
}

func TestGate_ConcurrentReservationsNeverOvershoot(t *testing.T) {
	ctx := context.Background()
	c := &clock{at: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	g := newGate(t, newMemSubscriptions(), nil, c)

	_, err := g.Increment(ctx, "clinic1", quota.MetricClientsToday, 4)
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		granted int
		denied  int
	)
	var eg errgroup.Group
	for i := 0; i < 10; i++ {
		eg.Go(func() error {
			_, err := g.Reserve(ctx, "clinic1", quota.MetricClientsToday)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, quota.ErrQuotaExceeded):
				denied++
			case err != nil:
				return err
			default:
				granted++
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	require.Equal(t, 1, granted)
	require.Equal(t, 9, denied)
	sub, err := g.Get(ctx, "clinic1")
	require.NoError(t, err)
	require.Equal(t, 5, sub.Usage.ClientsToday)
}

func TestGate_ReleaseReturnsReservedUnit(t *testing.T) {
	ctx := context.Background()
	c := &clock{at: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	g := newGate(t, newMemSubscriptions(), nil, c)

	release, err := g.Reserve(ctx, "clinic1", quota.MetricClientsToday)
	require.NoError(t, err)

	sub, err := g.Get(ctx, "clinic1")
	require.NoError(t, err)
	require.Equal(t, 1, sub.Usage.ClientsToday)
	require.Equal(t, 1, sub.Usage.ClientsThisMonth)

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))

	sub, err = g.Get(ctx, "clinic1")
	require.NoError(t, err)
	require.Zero(t, sub.Usage.ClientsToday)
	require.Zero(t, sub.Usage.ClientsThisMonth)
}

func TestGate_ReleaseAfterRollOverIsDropped(t *testing.T) {
	ctx := context.Background()
	c := &clock{at: time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)}
	g := newGate(t, newMemSubscriptions(), nil, c)

	release, err := g.Reserve(ctx, "clinic1", quota.MetricClientsToday)
	require.NoError(t, err)

	c.at = time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)
	_, err = g.Increment(ctx, "clinic1", quota.MetricClientsToday, 2)
	require.NoError(t, err)
	require.NoError(t, release(ctx))

	sub, err := g.Get(ctx, "clinic1")
	require.NoError(t, err)
	require.Equal(t, 2, sub.Usage.ClientsToday)
	require.Equal(t, 3, sub.Usage.ClientsThisMonth)
}

func TestGate_RetriesVersionConflicts(t *testing.T) {
	ctx := context.Background()
	c := &clock{at: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	repo := newMemSubscriptions()
	g := newGate(t, repo, nil, c)

	repo.conflicts = 2
	applied, err := g.Increment(ctx, "clinic1", quota.MetricScriptsToday, 1)
	require.NoError(t, err)
	require.Equal(t, 1, applied)
	require.Equal(t, 3, repo.updates)

	repo.conflicts = 10
	_, err = g.Increment(ctx, "clinic1", quota.MetricScriptsToday, 1)
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestGate_PublishesAlertWhenGradeChanges(t *testing.T) {
	ctx := context.Background()
	c := &clock{at: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	alerts := &recordedAlerts{}
	g := newGate(t, newMemSubscriptions(), alerts, c)

	_, err := g.Increment(ctx, "clinic1", quota.MetricScriptsToday, 3)
	require.NoError(t, err)
	require.Empty(t, alerts.alerts)

	_, err = g.Increment(ctx, "clinic1", quota.MetricScriptsToday, 1)
	require.NoError(t, err)
	require.Len(t, alerts.alerts, 1)
	require.Equal(t, quota.AlertWarning, alerts.alerts[0].Type)
	require.Equal(t, 80, alerts.alerts[0].Percentage)

	_, err = g.Increment(ctx, "clinic1", quota.MetricScriptsToday, 1)
	require.NoError(t, err)
	require.Len(t, alerts.alerts, 2)
	require.Equal(t, quota.AlertLimitReached, alerts.alerts[1].Type)
}

func TestGate_ChangeTierKeepsUsage(t *testing.T) {
	ctx := context.Background()
	c := &clock{at: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	repo := newMemSubscriptions()
	g := quota.NewGate(repo, tier.Default(), nil, nil, quota.WithClock(c.now))
	_, err := g.Subscribe(ctx, "clinic1", tier.TierAlpha, tier.CycleMonthly)
	require.NoError(t, err)

	_, err = g.Increment(ctx, "clinic1", quota.MetricClientsToday, 10)
	require.NoError(t, err)

	sub, err := g.ChangeTier(ctx, "clinic1", tier.TierBeta, tier.CycleAnnual)
	require.NoError(t, err)
	require.Equal(t, tier.TierBeta, sub.Tier)
	require.Equal(t, 5, sub.Limits.ClientsPerDay)
	require.Equal(t, 10, sub.Usage.ClientsToday)
	require.Equal(t, int64(49000), sub.BillingCents)

	alerts, err := g.Alerts(ctx, "clinic1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, quota.AlertLimitReached, alerts[0].Type)
	require.Equal(t, 100, alerts[0].Percentage)

	err = g.Check(ctx, "clinic1", quota.MetricClientsToday)
	require.ErrorIs(t, err, quota.ErrQuotaExceeded)
}

func TestGate_DailyCountersRollOver(t *testing.T) {
	ctx := context.Background()
	c := &clock{at: time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)}
	g := newGate(t, newMemSubscriptions(), nil, c)

	_, err := g.Increment(ctx, "clinic1", quota.MetricClientsToday, 5)
	require.NoError(t, err)
	require.ErrorIs(t, g.Check(ctx, "clinic1", quota.MetricClientsToday), quota.ErrQuotaExceeded)

	c.at = c.at.Add(6 * time.Hour)
	require.ErrorIs(t, g.Check(ctx, "clinic1", quota.MetricClientsToday), quota.ErrQuotaExceeded)

	c.at = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, g.Check(ctx, "clinic1", quota.MetricClientsToday))

	sub, err := g.ResetDaily(ctx, "clinic1")
	require.NoError(t, err)
	require.Zero(t, sub.Usage.ClientsToday)
	require.Zero(t, sub.Usage.ClientsThisMonth)
	require.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), sub.UsageDate)
}

func TestGate_SubscriptionErrors(t *testing.T) {
	ctx := context.Background()
	c := &clock{at: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	g := newGate(t, newMemSubscriptions(), nil, c)

	_, err := g.Subscribe(ctx, "clinic1", tier.TierBeta, "")
	require.ErrorIs(t, err, quota.ErrSubscriptionExists)

	_, err = g.Subscribe(ctx, "clinic2", tier.Tier("gold"), "")
	require.ErrorIs(t, err, tier.ErrUnknownTier)

	require.ErrorIs(t, g.Check(ctx, "missing", quota.MetricTherapists), quota.ErrSubscriptionNotFound)

	_, err = g.Increment(ctx, "clinic1", quota.Metric("seats"), 1)
	require.ErrorIs(t, err, quota.ErrUnknownMetric)

	_, err = g.Increment(ctx, "clinic1", quota.MetricTherapists, 0)
	require.ErrorIs(t, err, quota.ErrInvalidAmount)
}
