package tier

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownTier indicates the tier is not in the catalog.
	ErrUnknownTier = errors.New("unknown tier")
	// ErrInvalidPlan indicates a plan definition is unusable.
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrUnknownCycle indicates an unsupported billing cycle.
	ErrUnknownCycle = errors.New("unknown billing cycle")
)

// DefaultPlans is the built-in catalog.
var DefaultPlans = []Plan{
	{
		Tier:         TierBeta,
		Name:         "Beta",
		Limits:       Limits{Therapists: 1, ClientsPerDay: 5, ScriptsPerDay: 5},
		MonthlyCents: 4900,
	},
	{
		Tier:         TierAlpha,
		Name:         "Alpha",
		Limits:       Limits{Therapists: 5, ClientsPerDay: 25, ScriptsPerDay: 50},
		MonthlyCents: 14900,
	},
	{
		Tier:         TierTheta,
		Name:         "Theta",
		Limits:       Limits{Therapists: 20, ClientsPerDay: 100, ScriptsPerDay: 250},
		MonthlyCents: 39900,
	},
}

// Catalog is a static, read-only table of plans ordered from smallest to largest.
type Catalog struct {
	plans []Plan
	index map[Tier]int
}

// NewCatalog builds a catalog from the given plans. Later plans with the same
// tier replace earlier ones in place.
func NewCatalog(plans ...Plan) (*Catalog, error) {
	c := &Catalog{index: make(map[Tier]int, len(plans))}
	for _, p := range plans {
		p.Tier = Tier(strings.ToLower(strings.TrimSpace(string(p.Tier))))
		if err := validatePlan(p); err != nil {
			return nil, err
		}
		if i, ok := c.index[p.Tier]; ok {
			c.plans[i] = p
			continue
		}
		c.index[p.Tier] = len(c.plans)
		c.plans = append(c.plans, p)
	}
	if len(c.plans) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", ErrInvalidPlan)
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := NewCatalog(DefaultPlans...)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the plan for a tier.
func (c *Catalog) Lookup(t Tier) (Plan, error) {
	i, ok := c.index[t]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownTier, t)
	}
	return c.plans[i], nil
}

// Plans returns a copy of every plan in catalog order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

// Rank reports the position of a tier in the catalog, used to tell upgrades
// from downgrades. Unknown tiers rank -1.
func (c *Catalog) Rank(t Tier) int {
	if i, ok := c.index[t]; ok {
		return i
	}
	return -1
}

// ParseCycle validates a billing cycle string. Empty means monthly.
func ParseCycle(s string) (BillingCycle, error) {
	switch BillingCycle(strings.ToLower(strings.TrimSpace(s))) {
	case "", CycleMonthly:
		return CycleMonthly, nil
	case CycleAnnual:
		return CycleAnnual, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCycle, s)
}

func validatePlan(p Plan) error {
	if p.Tier == "" {
		return fmt.Errorf("%w: missing tier", ErrInvalidPlan)
	}
	if p.Limits.Therapists < 0 || p.Limits.ClientsPerDay < 0 || p.Limits.ScriptsPerDay < 0 {
		return fmt.Errorf("%w: %s has negative limits", ErrInvalidPlan, p.Tier)
	}
	if p.MonthlyCents < 0 {
		return fmt.Errorf("%w: %s has negative price", ErrInvalidPlan, p.Tier)
	}
	return nil
}
