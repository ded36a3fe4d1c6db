package tier_test

import (
	"testing"

	"github.com/rpggio/caseload/internal/domain/tier"
	"github.com/stretchr/testify/require"
)

func TestCatalog_DefaultLookup(t *testing.T) {
	c := tier.Default()

	plan, err := c.Lookup(tier.TierBeta)
	require.NoError(t, err)
	require.Equal(t, 5, plan.Limits.ClientsPerDay)

	_, err = c.Lookup("omega")
	require.ErrorIs(t, err, tier.ErrUnknownTier)

	require.Less(t, c.Rank(tier.TierBeta), c.Rank(tier.TierTheta))
	require.Equal(t, -1, c.Rank("omega"))
}

func TestCatalog_OverrideReplacesInPlace(t *testing.T) {
	plans := append([]tier.Plan{}, tier.DefaultPlans...)
	plans = append(plans, tier.Plan{
		Tier:         "ALPHA",
		Name:         "Alpha+",
		Limits:       tier.Limits{Therapists: 8, ClientsPerDay: 30, ScriptsPerDay: 60},
		MonthlyCents: 19900,
	})

	c, err := tier.NewCatalog(plans...)
	require.NoError(t, err)
	require.Len(t, c.Plans(), 3)

	plan, err := c.Lookup(tier.TierAlpha)
	require.NoError(t, err)
	require.Equal(t, "Alpha+", plan.Name)
	require.Equal(t, 1, c.Rank(tier.TierAlpha))
}

func TestCatalog_RejectsInvalidPlans(t *testing.T) {
	_, err := tier.NewCatalog()
	require.ErrorIs(t, err, tier.ErrInvalidPlan)

	_, err = tier.NewCatalog(tier.Plan{Tier: "x", Limits: tier.Limits{Therapists: -1}})
	require.ErrorIs(t, err, tier.ErrInvalidPlan)
}

func TestPlan_Price(t *testing.T) {
	plan := tier.Plan{MonthlyCents: 1000}
	require.Equal(t, int64(1000), plan.Price(tier.CycleMonthly))
	require.Equal(t, int64(10000), plan.Price(tier.CycleAnnual))

	cycle, err := tier.ParseCycle("")
	require.NoError(t, err)
	require.Equal(t, tier.CycleMonthly, cycle)

	_, err = tier.ParseCycle("weekly")
	require.ErrorIs(t, err, tier.ErrUnknownCycle)
}
