// Package metrics exposes Prometheus counters for the assignment workflow,
// fed from the event bus.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rpggio/caseload/internal/events"
)

var (
	AssignmentOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseload_assignment_ops_total",
			Help: "Assignment operations by op and outcome",
		},
		[]string{"op", "outcome"},
	)

	AssignmentFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseload_assignment_failures_total",
			Help: "Failed assignment operations by op and error code",
		},
		[]string{"op", "code"},
	)

	RollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseload_rollbacks_total",
			Help: "Optimistic updates rolled back by op",
		},
		[]string{"op"},
	)

	StatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseload_status_transitions_total",
			Help: "Client status transitions by from and to status",
		},
		[]string{"from", "to"},
	)

	UsageAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseload_usage_alerts_total",
			Help: "Usage alerts raised by metric and type",
		},
		[]string{"metric", "type"},
	)

	SessionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseload_session_transitions_total",
			Help: "Therapy session transitions by target status",
		},
		[]string{"to"},
	)
)

const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
)

// Record updates the counters for one event.
func Record(env events.Envelope) {
	switch p := env.Payload.(type) {
	case events.AssignmentSucceeded:
		AssignmentOpsTotal.WithLabelValues(p.Op, outcomeSucceeded).Inc()
	case events.AssignmentFailed:
		AssignmentOpsTotal.WithLabelValues(p.Op, outcomeFailed).Inc()
		AssignmentFailuresTotal.WithLabelValues(p.Op, p.Code).Inc()
		if p.RolledBack {
			RollbacksTotal.WithLabelValues(p.Op).Inc()
		}
	case events.StatusTransitioned:
		StatusTransitionsTotal.WithLabelValues(string(p.From), string(p.To)).Inc()
	case events.UsageAlertRaised:
		UsageAlertsTotal.WithLabelValues(string(p.Alert.Metric), string(p.Alert.Type)).Inc()
	case events.SessionTransitioned:
		SessionTransitionsTotal.WithLabelValues(string(p.To)).Inc()
	}
}

// Run records events until ch is closed or ctx is done.
func Run(ctx context.Context, ch <-chan events.Envelope) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-ch:
			if !ok {
				return nil
			}
			Record(env)
		}
	}
}
