package quota_test

import (
	"testing"
	"time"

	"github.com/rpggio/caseload/internal/domain/quota"
	"github.com/rpggio/caseload/internal/domain/tier"
	"github.com/stretchr/testify/require"
)

func TestRecomputeAlerts_Thresholds(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		usage   int
		limit   int
		want    quota.AlertType
		percent int
	}{
		{name: "below warning", usage: 3, limit: 5},
		{name: "warning at 80", usage: 4, limit: 5, want: quota.AlertWarning, percent: 80},
		{name: "critical at 95", usage: 19, limit: 20, want: quota.AlertCritical, percent: 95},
		{name: "limit reached", usage: 5, limit: 5, want: quota.AlertLimitReached, percent: 100},
		{name: "over limit capped", usage: 9, limit: 5, want: quota.AlertLimitReached, percent: 100},
		{name: "zero limit silent", usage: 0, limit: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &quota.Subscription{
				Limits: tier.Limits{Therapists: 10, ClientsPerDay: 10, ScriptsPerDay: tt.limit},
				Usage:  quota.Usage{ScriptsToday: tt.usage},
			}
			alerts := quota.RecomputeAlerts(sub, now)
			if tt.want == "" {
				require.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			require.Equal(t, quota.MetricScriptsToday, alerts[0].Metric)
			require.Equal(t, tt.want, alerts[0].Type)
			require.Equal(t, tt.percent, alerts[0].Percentage)
			require.Equal(t, now, alerts[0].Timestamp)
			require.NotEmpty(t, alerts[0].Message)
		})
	}
}

func TestCheck_IsPure(t *testing.T) {
	sub := &quota.Subscription{
		Limits: tier.Limits{ClientsPerDay: 5},
		Usage:  quota.Usage{ClientsToday: 4},
	}
	require.NoError(t, quota.Check(sub, quota.MetricClientsToday))
	require.Equal(t, 4, sub.Usage.ClientsToday)

	sub.Usage.ClientsToday = 5
	require.ErrorIs(t, quota.Check(sub, quota.MetricClientsToday), quota.ErrQuotaExceeded)

	require.ErrorIs(t, quota.Check(sub, quota.MetricTherapists), quota.ErrQuotaExceeded)
	require.ErrorIs(t, quota.Check(sub, quota.Metric("nope")), quota.ErrUnknownMetric)
}

func TestChangeTier_DoesNotMutateInput(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	plan, err := tier.Default().Lookup(tier.TierTheta)
	require.NoError(t, err)

	sub := &quota.Subscription{Tier: tier.TierBeta, Cycle: tier.CycleMonthly, Usage: quota.Usage{Therapists: 1}}
	out := quota.ChangeTier(sub, plan, "", now)

	require.Equal(t, tier.TierBeta, sub.Tier)
	require.Equal(t, tier.TierTheta, out.Tier)
	require.Equal(t, tier.CycleMonthly, out.Cycle)
	require.Equal(t, plan.MonthlyCents, out.BillingCents)
	require.Equal(t, 1, out.Usage.Therapists)
}
