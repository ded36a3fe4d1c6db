package quota

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaExceeded indicates the metric is at or over its limit.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrSubscriptionNotFound indicates the clinic has no subscription.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrSubscriptionExists indicates the clinic is already subscribed.
	ErrSubscriptionExists = errors.New("subscription already exists")
	// ErrUnknownMetric indicates the metric is not gated.
	ErrUnknownMetric = errors.New("unknown quota metric")
	// ErrInvalidAmount indicates a non-positive increment.
	ErrInvalidAmount = errors.New("increment amount must be positive")
)

// ExceededError reports which metric denied an action.
type ExceededError struct {
	Metric Metric
	Usage  int
	Limit  int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (%d/%d)", e.Metric, e.Usage, e.Limit)
}

// Is matches ErrQuotaExceeded.
func (e *ExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}
