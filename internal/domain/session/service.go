package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/caseload/internal/domain/client"
	"github.com/rpggio/caseload/internal/domain/lifecycle"
	"github.com/rpggio/caseload/internal/events"
	"github.com/rpggio/caseload/internal/repository"
)

// Service handles therapy session scheduling and progress.
type Service struct {
	sessions Repository
	clients  ClientStore
	events   Publisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new session service. pub may be nil.
func NewService(sessions Repository, clients ClientStore, pub Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		sessions: sessions,
		clients:  clients,
		events:   pub,
		logger:   logger,
		now:      time.Now,
	}
}

// Schedule books a session for a client in consultation or therapy.
func (s *Service) Schedule(ctx context.Context, clinicID string, req ScheduleRequest) (*Session, error) {
	if strings.TrimSpace(req.ClientID) == "" || req.At.IsZero() {
		return nil, ErrInvalidInput
	}

	cl, err := s.loadClient(ctx, clinicID, req.ClientID)
	if err != nil {
		return nil, err
	}
	if cl.Status != lifecycle.StatusConsultation && cl.Status != lifecycle.StatusTherapy {
		return nil, fmt.Errorf("%w: client %s is %s", ErrClientNotInTherapy, cl.ID, cl.Status)
	}
	therapistID := req.TherapistID
	if therapistID == "" {
		therapistID = cl.TherapistID()
	}
	if therapistID != cl.TherapistID() {
		return nil, ErrTherapistMismatch
	}

	now := s.now().UTC()
	sess := &Session{
		ID:          uuid.NewString(),
		ClinicID:    clinicID,
		ClientID:    cl.ID,
		TherapistID: therapistID,
		Status:      lifecycle.SessionScheduled,
		ScheduledAt: req.At.UTC(),
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.sessions.Create(ctx, clinicID, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	s.publish(ctx, clinicID, sess, lifecycle.SessionNew)
	return sess, nil
}

// Transition moves a session along its workflow. Completing a session bumps
// the client's session count and last-session time, and records progress
// when given. If that client update fails the session is put back to its
// previous state.
func (s *Service) Transition(ctx context.Context, clinicID string, req TransitionRequest) (*TransitionResult, error) {
	if req.SessionID == "" || !req.To.Valid() {
		return nil, ErrInvalidInput
	}

	sess, err := s.Get(ctx, clinicID, req.SessionID)
	if err != nil {
		return nil, err
	}
	from := sess.Status
	if err := lifecycle.ValidateSessionTransition(from, req.To); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	prev := *sess
	sess.Status = req.To
	sess.UpdatedAt = now
	switch req.To {
	case lifecycle.SessionScheduled:
		if req.At == nil || req.At.IsZero() {
			return nil, fmt.Errorf("%w: reschedule needs a time", ErrInvalidInput)
		}
		sess.ScheduledAt = req.At.UTC()
		sess.StartedAt = nil
	case lifecycle.SessionStarted:
		sess.StartedAt = &now
	case lifecycle.SessionCompleted:
		sess.CompletedAt = &now
	}

	if err := s.sessions.Update(ctx, clinicID, sess, from); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrStaleSession
		}
		return nil, fmt.Errorf("updating session: %w", err)
	}

	result := &TransitionResult{Session: sess}
	if req.To == lifecycle.SessionCompleted {
		updated, err := s.completeForClient(ctx, clinicID, sess, now, req.Progress)
		if err != nil {
			s.revert(ctx, clinicID, &prev, req.To)
			return nil, err
		}
		result.TotalSessions = updated.TotalSessions
		result.Progress = updated.Progress
	}
	s.publish(ctx, clinicID, sess, from)
	return result, nil
}

// completeForClient counts a completed session on its client. The count is
// incremented in the store so concurrent completions are all kept.
func (s *Service) completeForClient(ctx context.Context, clinicID string, sess *Session, at time.Time, progress *int) (*client.Client, error) {
	patch := client.Patch{AddSessions: 1, LastSession: &at}
	if progress != nil {
		p := client.ClampProgress(*progress)
		patch.Progress = &p
	}
	updated, err := s.clients.Update(ctx, clinicID, sess.ClientID, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("updating client totals: %w", err)
	}
	return updated, nil
}

// revert puts a session back after the client side of its transition failed.
func (s *Service) revert(ctx context.Context, clinicID string, prev *Session, current lifecycle.SessionStatus) {
	if err := s.sessions.Update(context.WithoutCancel(ctx), clinicID, prev, current); err != nil {
		s.logger.Error("session transition not reverted", "session_id", prev.ID, "status", current, "error", err)
		return
	}
	s.logger.Warn("session transition reverted", "session_id", prev.ID, "status", prev.Status)
}

// Get returns a session by ID.
func (s *Service) Get(ctx context.Context, clinicID, id string) (*Session, error) {
	sess, err := s.sessions.Get(ctx, clinicID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return sess, nil
}

// ListByClient returns a client's sessions.
func (s *Service) ListByClient(ctx context.Context, clinicID, clientID string) ([]Session, error) {
	return s.sessions.ListByClient(ctx, clinicID, clientID)
}

func (s *Service) loadClient(ctx context.Context, clinicID, id string) (*client.Client, error) {
	cl, err := s.clients.Get(ctx, clinicID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("loading client: %w", err)
	}
	return cl, nil
}

func (s *Service) publish(ctx context.Context, clinicID string, sess *Session, from lifecycle.SessionStatus) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, clinicID, events.SessionTransitioned{
		SessionID: sess.ID,
		ClientID:  sess.ClientID,
		From:      from,
		To:        sess.Status,
	})
}
