package therapist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/caseload/internal/domain/quota"
	"github.com/rpggio/caseload/internal/repository"
)

// Repository provides persistence for therapists. Get fills CurrentLoad.
type Repository interface {
	Create(ctx context.Context, clinicID string, t *Therapist) error
	Get(ctx context.Context, clinicID, id string) (*Therapist, error)
	SetActivityStatus(ctx context.Context, clinicID, id string, status ActivityStatus) error
	List(ctx context.Context, clinicID string) ([]Therapist, error)
}

// QuotaGate meters the therapists quota.
type QuotaGate interface {
	Reserve(ctx context.Context, clinicID string, metric quota.Metric) (quota.Release, error)
}

// Service handles therapist onboarding.
type Service struct {
	repo   Repository
	quota  QuotaGate
	logger *slog.Logger
}

// NewService creates a new therapist service.
func NewService(repo Repository, gate QuotaGate, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, quota: gate, logger: logger}
}

// OnboardRequest describes a therapist onboarding.
type OnboardRequest struct {
	ID         string
	Name       string
	MaxClients int
}

// Onboard adds a therapist in pending setup, consuming one therapist seat.
func (s *Service) Onboard(ctx context.Context, clinicID string, req OnboardRequest) (*Therapist, error) {
	if strings.TrimSpace(clinicID) == "" || strings.TrimSpace(req.Name) == "" || req.MaxClients < 0 {
		return nil, ErrInvalidInput
	}
	release, err := s.quota.Reserve(ctx, clinicID, quota.MetricTherapists)
	if err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	t := &Therapist{
		ID:             id,
		ClinicID:       clinicID,
		Name:           req.Name,
		ActivityStatus: StatusPendingSetup,
		MaxClients:     req.MaxClients,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, clinicID, t); err != nil {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			s.logger.Warn("therapist seat not released", "clinic_id", clinicID, "therapist_id", id, "error", rerr)
		}
		return nil, fmt.Errorf("creating therapist: %w", err)
	}
	return t, nil
}

// SetActivityStatus records the identity side's verdict on a therapist.
func (s *Service) SetActivityStatus(ctx context.Context, clinicID, id string, status ActivityStatus) (*Therapist, error) {
	if !status.Valid() {
		return nil, ErrInvalidInput
	}
	if err := s.repo.SetActivityStatus(ctx, clinicID, id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTherapistNotFound
		}
		return nil, fmt.Errorf("updating therapist: %w", err)
	}
	return s.Get(ctx, clinicID, id)
}

// Get returns a therapist with its current load.
func (s *Service) Get(ctx context.Context, clinicID, id string) (*Therapist, error) {
	t, err := s.repo.Get(ctx, clinicID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTherapistNotFound
		}
		return nil, fmt.Errorf("getting therapist: %w", err)
	}
	return t, nil
}

// List returns all therapists of a clinic.
func (s *Service) List(ctx context.Context, clinicID string) ([]Therapist, error) {
	return s.repo.List(ctx, clinicID)
}
