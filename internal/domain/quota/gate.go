package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/caseload/internal/domain/tier"
	"github.com/rpggio/caseload/internal/repository"
)

const defaultUpdateRetries = 3

// Repository provides persistence for subscriptions. Update must fail with
// repository.ErrConflict when the stored version differs from expectedVersion,
// and bump the version on success.
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, clinicID string) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription, expectedVersion int64) error
}

// AlertPublisher receives alerts whose grade changed.
type AlertPublisher interface {
	PublishAlerts(ctx context.Context, clinicID string, alerts []UsageAlert)
}

// Gate meters quota-consuming actions per clinic. Mutations of one clinic's
// usage are serialised; different clinics proceed independently.
type Gate struct {
	repo    Repository
	catalog *tier.Catalog
	alerts  AlertPublisher
	logger  *slog.Logger
	now     func() time.Time
	retries int

	locks sync.Map // clinicID -> *sync.Mutex
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a quota gate. alerts may be nil.
func NewGate(repo Repository, catalog *tier.Catalog, alerts AlertPublisher, logger *slog.Logger, opts ...Option) *Gate {
	if catalog == nil {
		catalog = tier.Default()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	g := &Gate{
		repo:    repo,
		catalog: catalog,
		alerts:  alerts,
		logger:  logger,
		now:     time.Now,
		retries: defaultUpdateRetries,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Catalog returns the tier catalog backing the gate.
func (g *Gate) Catalog() *tier.Catalog {
	return g.catalog
}

// Subscribe creates the clinic's subscription on a plan.
func (g *Gate) Subscribe(ctx context.Context, clinicID string, t tier.Tier, cycle tier.BillingCycle) (*Subscription, error) {
	plan, err := g.catalog.Lookup(t)
	if err != nil {
		return nil, err
	}
	if cycle == "" {
		cycle = tier.CycleMonthly
	}

	now := g.now().UTC()
	sub := &Subscription{
		ClinicID:     clinicID,
		Tier:         plan.Tier,
		Cycle:        cycle,
		Limits:       plan.Limits,
		BillingCents: plan.Price(cycle),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	RollOver(sub, now)

	if err := g.repo.Create(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrSubscriptionExists
		}
		return nil, fmt.Errorf("creating subscription: %w", err)
	}
	return sub, nil
}

// Get returns the clinic's subscription with counters rolled over to today.
func (g *Gate) Get(ctx context.Context, clinicID string) (*Subscription, error) {
	sub, err := g.load(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	RollOver(sub, g.now())
	return sub, nil
}

// Check reports whether one more unit of metric is allowed. It never mutates
// usage.
func (g *Gate) Check(ctx context.Context, clinicID string, metric Metric) error {
	sub, err := g.Get(ctx, clinicID)
	if err != nil {
		return err
	}
	return Check(sub, metric)
}

// Increment records amount units of metric, clamped at the limit, and returns
// how many were applied. When nothing fits it returns an *ExceededError.
// The read, clamp and write happen under the clinic's lock.
func (g *Gate) Increment(ctx context.Context, clinicID string, metric Metric, amount int) (int, error) {
	if !metric.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var applied int
	err := g.mutate(ctx, clinicID, func(sub *Subscription) (bool, error) {
		rolled := RollOver(sub, g.now())
		applied = clampedIncrement(sub, metric, amount)
		if applied == 0 {
			if rolled {
				return true, &ExceededError{Metric: metric, Usage: sub.UsageOf(metric), Limit: sub.LimitOf(metric)}
			}
			return false, &ExceededError{Metric: metric, Usage: sub.UsageOf(metric), Limit: sub.LimitOf(metric)}
		}
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	if applied < amount {
		g.logger.Warn("usage increment clamped", "clinic_id", clinicID, "metric", metric, "requested", amount, "applied", applied)
	}
	return applied, nil
}

// Release returns a reserved unit. A reservation taken on an earlier day is
// dropped since the counter it bumped has already been reset.
type Release func(ctx context.Context) error

// Reserve takes one unit of metric if the limit allows it. The check and the
// increment happen in one step under the clinic's lock, so concurrent callers
// can never overshoot the limit. The returned Release gives the unit back
// when the gated action does not happen.
func (g *Gate) Reserve(ctx context.Context, clinicID string, metric Metric) (Release, error) {
	if !metric.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}

	var day time.Time
	err := g.mutate(ctx, clinicID, func(sub *Subscription) (bool, error) {
		rolled := RollOver(sub, g.now())
		if err := Check(sub, metric); err != nil {
			return rolled, err
		}
		sub.add(metric, 1)
		day = sub.UsageDate
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	release := func(ctx context.Context) error {
		var err error
		once.Do(func() { err = g.unreserve(ctx, clinicID, metric, day) })
		return err
	}
	return release, nil
}

func (g *Gate) unreserve(ctx context.Context, clinicID string, metric Metric, day time.Time) error {
	err := g.mutate(ctx, clinicID, func(sub *Subscription) (bool, error) {
		RollOver(sub, g.now())
		if metric != MetricTherapists && !sub.UsageDate.Equal(day) {
			return false, nil
		}
		if sub.UsageOf(metric) <= 0 {
			return false, nil
		}
		sub.add(metric, -1)
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("releasing %s reservation: %w", metric, err)
	}
	g.logger.Debug("quota reservation released", "clinic_id", clinicID, "metric", metric)
	return nil
}

// ChangeTier moves the clinic to another plan. Usage counters are kept, so a
// downgrade can leave the clinic over its new limits until the next reset.
func (g *Gate) ChangeTier(ctx context.Context, clinicID string, t tier.Tier, cycle tier.BillingCycle) (*Subscription, error) {
	plan, err := g.catalog.Lookup(t)
	if err != nil {
		return nil, err
	}

	var result *Subscription
	var from tier.Tier
	err = g.mutate(ctx, clinicID, func(sub *Subscription) (bool, error) {
		from = sub.Tier
		RollOver(sub, g.now())
		*sub = *ChangeTier(sub, plan, cycle, g.now().UTC())
		result = sub
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	direction := "upgrade"
	if g.catalog.Rank(plan.Tier) < g.catalog.Rank(from) {
		direction = "downgrade"
	}
	g.logger.Info("subscription tier changed", "clinic_id", clinicID, "from", from, "tier", plan.Tier,
		"direction", direction, "billing_cents", result.BillingCents)
	return result, nil
}

// ResetDaily applies the day and month roll-over and persists it.
func (g *Gate) ResetDaily(ctx context.Context, clinicID string) (*Subscription, error) {
	var result *Subscription
	err := g.mutate(ctx, clinicID, func(sub *Subscription) (bool, error) {
		result = sub
		return RollOver(sub, g.now()), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Alerts returns the current alerts for the clinic.
func (g *Gate) Alerts(ctx context.Context, clinicID string) ([]UsageAlert, error) {
	sub, err := g.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	return RecomputeAlerts(sub, g.now().UTC()), nil
}

// mutate runs fn against a fresh copy of the subscription under the clinic's
// lock and persists it when fn reports a change. Version conflicts from other
// processes are retried. Alerts whose grade changed are published after a
// successful write.
func (g *Gate) mutate(ctx context.Context, clinicID string, fn func(*Subscription) (bool, error)) error {
	mu := g.lockFor(clinicID)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; ; attempt++ {
		sub, err := g.load(ctx, clinicID)
		if err != nil {
			return err
		}
		before := RecomputeAlerts(sub, g.now().UTC())
		version := sub.Version

		changed, fnErr := fn(sub)
		if !changed {
			return fnErr
		}

		sub.UpdatedAt = g.now().UTC()
		err = g.repo.Update(ctx, sub, version)
		if errors.Is(err, repository.ErrConflict) && attempt < g.retries {
			g.logger.Debug("subscription version conflict, retrying", "clinic_id", clinicID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return fmt.Errorf("updating subscription: %w", err)
		}

		g.publishChanged(ctx, clinicID, before, RecomputeAlerts(sub, g.now().UTC()))
		return fnErr
	}
}

func (g *Gate) publishChanged(ctx context.Context, clinicID string, before, after []UsageAlert) {
	if g.alerts == nil {
		return
	}
	prev := make(map[Metric]AlertType, len(before))
	for _, a := range before {
		prev[a.Metric] = a.Type
	}
	var raised []UsageAlert
	for _, a := range after {
		if prev[a.Metric] != a.Type {
			raised = append(raised, a)
		}
	}
	if len(raised) > 0 {
		g.alerts.PublishAlerts(ctx, clinicID, raised)
	}
}

func (g *Gate) load(ctx context.Context, clinicID string) (*Subscription, error) {
	sub, err := g.repo.Get(ctx, clinicID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("loading subscription: %w", err)
	}
	return sub, nil
}

func (g *Gate) lockFor(clinicID string) *sync.Mutex {
	mu, _ := g.locks.LoadOrStore(clinicID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
