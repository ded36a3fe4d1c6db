package session

import (
	"context"

	"github.com/rpggio/caseload/internal/domain/client"
	"github.com/rpggio/caseload/internal/domain/lifecycle"
	"github.com/rpggio/caseload/internal/events"
)

// Repository provides persistence for sessions. Update must fail with
// repository.ErrConflict when the stored status differs from expected.
type Repository interface {
	Create(ctx context.Context, clinicID string, sess *Session) error
	Get(ctx context.Context, clinicID, id string) (*Session, error)
	Update(ctx context.Context, clinicID string, sess *Session, expected lifecycle.SessionStatus) error
	ListByClient(ctx context.Context, clinicID, clientID string) ([]Session, error)
}

// ClientStore reads and patches clients.
type ClientStore interface {
	Get(ctx context.Context, clinicID, id string) (*client.Client, error)
	Update(ctx context.Context, clinicID, id string, patch client.Patch) (*client.Client, error)
}

// Publisher receives session events.
type Publisher interface {
	Publish(ctx context.Context, clinicID string, payload events.Payload) events.Envelope
}
