package quota

import (
	"fmt"
	"time"

	"github.com/rpggio/caseload/internal/domain/tier"
)

// Check decides whether one more unit of m may be consumed. It never mutates
// the subscription.
func Check(sub *Subscription, m Metric) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMetric, m)
	}
	usage, limit := sub.UsageOf(m), sub.LimitOf(m)
	if usage >= limit {
		return &ExceededError{Metric: m, Usage: usage, Limit: limit}
	}
	return nil
}

// clampedIncrement applies up to n units of m without passing the limit and
// returns how many were applied.
func clampedIncrement(sub *Subscription, m Metric, n int) int {
	room := sub.LimitOf(m) - sub.UsageOf(m)
	if room <= 0 {
		return 0
	}
	if n > room {
		n = room
	}
	sub.add(m, n)
	return n
}

// RecomputeAlerts grades every metric of the subscription, highest threshold
// first. Metrics with a zero limit produce no alert.
func RecomputeAlerts(sub *Subscription, now time.Time) []UsageAlert {
	var alerts []UsageAlert
	for _, m := range Metrics {
		usage, limit := sub.UsageOf(m), sub.LimitOf(m)
		if limit <= 0 {
			continue
		}

		var typ AlertType
		switch {
		case usage >= limit:
			typ = AlertLimitReached
		case usage*100 >= limit*95:
			typ = AlertCritical
		case usage*100 >= limit*80:
			typ = AlertWarning
		default:
			continue
		}

		pct := usage * 100 / limit
		if pct > 100 {
			pct = 100
		}
		alerts = append(alerts, UsageAlert{
			Metric:       m,
			Type:         typ,
			CurrentUsage: usage,
			Limit:        limit,
			Percentage:   pct,
			Message:      fmt.Sprintf("%s at %d%% of limit (%d/%d)", m, pct, usage, limit),
			Timestamp:    now,
		})
	}
	return alerts
}

// ChangeTier returns a copy of sub on the target plan. Usage is kept even when
// it exceeds the new limits.
func ChangeTier(sub *Subscription, plan tier.Plan, cycle tier.BillingCycle, now time.Time) *Subscription {
	out := *sub
	out.Tier = plan.Tier
	out.Limits = plan.Limits
	if cycle != "" {
		out.Cycle = cycle
	}
	out.BillingCents = plan.Price(out.Cycle)
	out.UpdatedAt = now
	return &out
}

// RollOver resets daily counters when now falls on a later day than the
// subscription's usage date, and monthly counters on a new month. It reports
// whether anything changed.
func RollOver(sub *Subscription, now time.Time) bool {
	now = now.UTC()
	last := sub.UsageDate.UTC()
	if !sub.UsageDate.IsZero() && sameDay(last, now) {
		return false
	}
	sub.Usage.ClientsToday = 0
	sub.Usage.ScriptsToday = 0
	if sub.UsageDate.IsZero() || last.Year() != now.Year() || last.Month() != now.Month() {
		sub.Usage.ClientsThisMonth = 0
		sub.Usage.ScriptsThisMonth = 0
	}
	sub.UsageDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
