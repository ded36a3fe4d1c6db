package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/caseload/internal/events"
)

// Service handles activity log operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new activity service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger}
}

// LogActivity logs an activity entry with the current timestamp if missing.
func (s *Service) LogActivity(ctx context.Context, clinicID string, entry *ActivityEntry) error {
	if entry == nil || entry.ActivityType == "" {
		return ErrInvalidInput
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.Log(ctx, clinicID, entry); err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

// GetRecentActivity lists activity entries with filtering.
func (s *Service) GetRecentActivity(ctx context.Context, clinicID string, opts ListActivityOptions) ([]ActivityEntry, error) {
	return s.repo.List(ctx, clinicID, opts)
}

// History returns the recorded trail of a client, oldest first.
func (s *Service) History(ctx context.Context, clinicID, clientID string, limit int) ([]ActivityEntry, error) {
	if clientID == "" {
		return nil, ErrInvalidInput
	}
	entries, err := s.repo.List(ctx, clinicID, ListActivityOptions{ClientID: &clientID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("listing client history: %w", err)
	}
	return entries, nil
}

// Record appends an event envelope to the log.
func (s *Service) Record(ctx context.Context, env events.Envelope) error {
	entry, err := EntryFromEnvelope(env)
	if err != nil {
		return err
	}
	return s.LogActivity(ctx, env.ClinicID, entry)
}

// Run records envelopes until ch closes or ctx is done. Entries that fail to
// persist are logged and skipped.
func (s *Service) Run(ctx context.Context, ch <-chan events.Envelope) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-ch:
			if !ok {
				return nil
			}
			if err := s.Record(ctx, env); err != nil {
				s.logger.Warn("activity not recorded", "event_id", env.ID, "kind", env.Kind, "error", err)
			}
		}
	}
}

// EntryFromEnvelope converts an event into a log entry.
func EntryFromEnvelope(env events.Envelope) (*ActivityEntry, error) {
	if env.Payload == nil {
		return nil, ErrInvalidInput
	}
	details, err := json.Marshal(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("encoding event details: %w", err)
	}

	entry := &ActivityEntry{
		ClinicID:  env.ClinicID,
		EventID:   env.ID,
		Details:   string(details),
		CreatedAt: env.OccurredAt,
	}
	if id := env.ClientID(); id != "" {
		entry.ClientID = &id
	}

	switch p := env.Payload.(type) {
	case events.AssignmentSucceeded:
		entry.ActivityType = TypeAssignmentSucceeded
		if p.TherapistID == "" {
			entry.Summary = fmt.Sprintf("%s: client %s released", p.Op, p.ClientID)
		} else {
			entry.Summary = fmt.Sprintf("%s: client %s to therapist %s", p.Op, p.ClientID, p.TherapistID)
		}
	case events.AssignmentFailed:
		entry.ActivityType = TypeAssignmentFailed
		entry.Summary = fmt.Sprintf("%s failed for client %s: %s", p.Op, p.ClientID, p.Code)
	case events.StatusTransitioned:
		entry.ActivityType = TypeStatusTransition
		entry.Summary = fmt.Sprintf("client %s %s -> %s", p.ClientID, p.From, p.To)
	case events.UsageAlertRaised:
		entry.ActivityType = TypeUsageAlert
		entry.Summary = p.Alert.Message
	case events.SessionTransitioned:
		entry.ActivityType = TypeSessionTransition
		entry.Summary = fmt.Sprintf("session %s %s -> %s", p.SessionID, p.From, p.To)
	default:
		return nil, fmt.Errorf("%w: unsupported event %s", ErrInvalidInput, env.Kind)
	}
	return entry, nil
}
