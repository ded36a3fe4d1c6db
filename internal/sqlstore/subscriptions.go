package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpggio/caseload/internal/domain/quota"
	"github.com/rpggio/caseload/internal/repository"
)

var _ quota.Repository = (*SubscriptionRepository)(nil)

// SubscriptionRepository stores clinic subscriptions with optimistic
// versioning.
type SubscriptionRepository struct {
	db *DB
}

// NewSubscriptionRepository creates a new SubscriptionRepository
func NewSubscriptionRepository(db *DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create inserts a subscription at version 1.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *quota.Subscription) error {
	_, err := r.db.exec(ctx, `
		INSERT INTO subscriptions (
			clinic_id, tier, billing_cycle,
			limit_therapists, limit_clients_per_day, limit_scripts_per_day,
			therapists, clients_today, clients_this_month, scripts_today, scripts_this_month,
			billing_cents, usage_date, created_at, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		sub.ClinicID,
		sub.Tier,
		sub.Cycle,
		sub.Limits.Therapists,
		sub.Limits.ClientsPerDay,
		sub.Limits.ScriptsPerDay,
		sub.Usage.Therapists,
		sub.Usage.ClientsToday,
		sub.Usage.ClientsThisMonth,
		sub.Usage.ScriptsToday,
		sub.Usage.ScriptsThisMonth,
		sub.BillingCents,
		sub.UsageDate,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	sub.Version = 1
	return nil
}

// Get retrieves a clinic's subscription.
func (r *SubscriptionRepository) Get(ctx context.Context, clinicID string) (*quota.Subscription, error) {
	var sub quota.Subscription
	err := r.db.queryRow(ctx, `
		SELECT clinic_id, tier, billing_cycle,
			limit_therapists, limit_clients_per_day, limit_scripts_per_day,
			therapists, clients_today, clients_this_month, scripts_today, scripts_this_month,
			billing_cents, usage_date, created_at, updated_at, version
		FROM subscriptions WHERE clinic_id = ?`, clinicID).Scan(
		&sub.ClinicID,
		&sub.Tier,
		&sub.Cycle,
		&sub.Limits.Therapists,
		&sub.Limits.ClientsPerDay,
		&sub.Limits.ScriptsPerDay,
		&sub.Usage.Therapists,
		&sub.Usage.ClientsToday,
		&sub.Usage.ClientsThisMonth,
		&sub.Usage.ScriptsToday,
		&sub.Usage.ScriptsThisMonth,
		&sub.BillingCents,
		&sub.UsageDate,
		&sub.CreatedAt,
		&sub.UpdatedAt,
		&sub.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// Update writes sub if the stored version still equals expectedVersion.
func (r *SubscriptionRepository) Update(ctx context.Context, sub *quota.Subscription, expectedVersion int64) error {
	result, err := r.db.exec(ctx, `
		UPDATE subscriptions SET
			tier = ?, billing_cycle = ?,
			limit_therapists = ?, limit_clients_per_day = ?, limit_scripts_per_day = ?,
			therapists = ?, clients_today = ?, clients_this_month = ?, scripts_today = ?, scripts_this_month = ?,
			billing_cents = ?, usage_date = ?, updated_at = ?, version = version + 1
		WHERE clinic_id = ? AND version = ?`,
		sub.Tier,
		sub.Cycle,
		sub.Limits.Therapists,
		sub.Limits.ClientsPerDay,
		sub.Limits.ScriptsPerDay,
		sub.Usage.Therapists,
		sub.Usage.ClientsToday,
		sub.Usage.ClientsThisMonth,
		sub.Usage.ScriptsToday,
		sub.Usage.ScriptsThisMonth,
		sub.BillingCents,
		sub.UsageDate,
		sub.UpdatedAt,
		sub.ClinicID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := r.Get(ctx, sub.ClinicID); err != nil {
			return err
		}
		return repository.ErrConflict
	}
	sub.Version = expectedVersion + 1
	return nil
}
