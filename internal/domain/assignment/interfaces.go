package assignment

import (
	"context"

	"github.com/rpggio/caseload/internal/cache"
	"github.com/rpggio/caseload/internal/domain/client"
	"github.com/rpggio/caseload/internal/domain/quota"
	"github.com/rpggio/caseload/internal/domain/therapist"
	"github.com/rpggio/caseload/internal/events"
)

// Repository provides persistence for assignment records. Delete exists only
// to compensate a record whose enclosing operation failed.
type Repository interface {
	Create(ctx context.Context, clinicID string, a *Assignment) error
	Get(ctx context.Context, clinicID, id string) (*Assignment, error)
	Delete(ctx context.Context, clinicID, id string) error
	ListByClient(ctx context.Context, clinicID, clientID string) ([]Assignment, error)
}

// ClientStore reads and patches clients.
type ClientStore interface {
	Get(ctx context.Context, clinicID, id string) (*client.Client, error)
	Update(ctx context.Context, clinicID, id string, patch client.Patch) (*client.Client, error)
}

// TherapistStore reads therapists.
type TherapistStore interface {
	Get(ctx context.Context, clinicID, id string) (*therapist.Therapist, error)
}

// QuotaGate reserves units of quota-consuming actions.
type QuotaGate interface {
	Reserve(ctx context.Context, clinicID string, metric quota.Metric) (quota.Release, error)
}

// Cache is the optimistic client view.
type Cache interface {
	Put(c *client.Client)
	Begin(clinicID, clientID string, update func(*client.Client)) (*cache.Snapshot, error)
	Confirm(snap *cache.Snapshot, server *client.Client) error
	Rollback(snap *cache.Snapshot) error
}

// Publisher receives outcome events.
type Publisher interface {
	Publish(ctx context.Context, clinicID string, payload events.Payload) events.Envelope
}
