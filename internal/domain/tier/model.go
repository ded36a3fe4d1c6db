package tier

// Tier names a subscription plan.
type Tier string

const (
	TierBeta  Tier = "beta"
	TierAlpha Tier = "alpha"
	TierTheta Tier = "theta"
)

// BillingCycle controls how a plan's price is billed.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleAnnual  BillingCycle = "annual"
)

// Limits are the resource ceilings granted by a tier.
// A zero limit means the resource is not available on the tier.
type Limits struct {
	Therapists    int `json:"therapists" yaml:"therapists"`
	ClientsPerDay int `json:"clients_per_day" yaml:"clients_per_day"`
	ScriptsPerDay int `json:"scripts_per_day" yaml:"scripts_per_day"`
}

// Plan is a catalog entry.
type Plan struct {
	Tier         Tier   `json:"tier" yaml:"tier"`
	Name         string `json:"name" yaml:"name"`
	Limits       Limits `json:"limits" yaml:"limits"`
	MonthlyCents int64  `json:"monthly_cents" yaml:"monthly_cents"`
}

// Price returns the amount billed per cycle, in cents.
// Annual billing charges ten months.
func (p Plan) Price(cycle BillingCycle) int64 {
	if cycle == CycleAnnual {
		return p.MonthlyCents * 10
	}
	return p.MonthlyCents
}
