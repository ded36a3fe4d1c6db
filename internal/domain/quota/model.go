package quota

import (
	"time"

	"github.com/rpggio/caseload/internal/domain/tier"
)

// Metric is a countable, rate-limited resource.
type Metric string

const (
	MetricTherapists   Metric = "therapists"
	MetricClientsToday Metric = "clientsToday"
	MetricScriptsToday Metric = "scriptsToday"
)

// Metrics lists every gated metric.
var Metrics = []Metric{MetricTherapists, MetricClientsToday, MetricScriptsToday}

// Valid reports whether m is a gated metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricTherapists, MetricClientsToday, MetricScriptsToday:
		return true
	}
	return false
}

// Usage holds the consumption counters of a subscription.
type Usage struct {
	Therapists       int `json:"therapists"`
	ClientsToday     int `json:"clients_today"`
	ClientsThisMonth int `json:"clients_this_month"`
	ScriptsToday     int `json:"scripts_today"`
	ScriptsThisMonth int `json:"scripts_this_month"`
}

// Subscription is a clinic's plan and its metered usage.
type Subscription struct {
	ClinicID     string            `json:"clinic_id"`
	Tier         tier.Tier         `json:"tier"`
	Cycle        tier.BillingCycle `json:"cycle"`
	Limits       tier.Limits       `json:"limits"`
	Usage        Usage             `json:"usage"`
	BillingCents int64             `json:"billing_cents"`
	UsageDate    time.Time         `json:"usage_date"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Version      int64             `json:"version"`
}

// UsageOf returns the current counter for a metric.
func (s *Subscription) UsageOf(m Metric) int {
	switch m {
	case MetricTherapists:
		return s.Usage.Therapists
	case MetricClientsToday:
		return s.Usage.ClientsToday
	case MetricScriptsToday:
		return s.Usage.ScriptsToday
	}
	return 0
}

// LimitOf returns the tier limit for a metric.
func (s *Subscription) LimitOf(m Metric) int {
	switch m {
	case MetricTherapists:
		return s.Limits.Therapists
	case MetricClientsToday:
		return s.Limits.ClientsPerDay
	case MetricScriptsToday:
		return s.Limits.ScriptsPerDay
	}
	return 0
}

// add bumps the counter for m, along with its monthly roll-up.
func (s *Subscription) add(m Metric, n int) {
	switch m {
	case MetricTherapists:
		s.Usage.Therapists += n
	case MetricClientsToday:
		s.Usage.ClientsToday += n
		s.Usage.ClientsThisMonth += n
	case MetricScriptsToday:
		s.Usage.ScriptsToday += n
		s.Usage.ScriptsThisMonth += n
	}
}

// AlertType grades how close a metric is to its limit.
type AlertType string

const (
	AlertWarning      AlertType = "warning"
	AlertCritical     AlertType = "critical"
	AlertLimitReached AlertType = "limit_reached"
)

// UsageAlert is derived from a subscription and never stored.
type UsageAlert struct {
	Metric       Metric    `json:"metric"`
	Type         AlertType `json:"type"`
	CurrentUsage int       `json:"current_usage"`
	Limit        int       `json:"limit"`
	Percentage   int       `json:"percentage"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}
