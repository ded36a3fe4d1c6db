package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/caseload/internal/domain/lifecycle"
	"github.com/rpggio/caseload/internal/repository"
)

// Service handles client intake and reads.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new client service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger}
}

// CreateRequest describes a client intake.
type CreateRequest struct {
	ID       string
	Name     string
	JoinDate time.Time
}

// Create registers a new, unassigned client.
func (s *Service) Create(ctx context.Context, clinicID string, req CreateRequest) (*Client, error) {
	if err := ValidateCreateInput(clinicID, req.Name); err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	joined := req.JoinDate
	if joined.IsZero() {
		joined = now
	}

	c := &Client{
		ID:        id,
		ClinicID:  clinicID,
		Name:      req.Name,
		Status:    lifecycle.StatusNew,
		JoinDate:  joined,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, clinicID, c); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: client %s already exists", ErrInvalidInput, id)
		}
		return nil, fmt.Errorf("creating client: %w", err)
	}
	s.logger.Info("client registered", "clinic_id", clinicID, "client_id", id)
	return c, nil
}

// Get returns a client by ID.
func (s *Service) Get(ctx context.Context, clinicID, id string) (*Client, error) {
	c, err := s.repo.Get(ctx, clinicID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("getting client: %w", err)
	}
	return c, nil
}

// List returns clients matching the options.
func (s *Service) List(ctx context.Context, clinicID string, opts ListOptions) ([]Client, error) {
	return s.repo.List(ctx, clinicID, opts)
}
