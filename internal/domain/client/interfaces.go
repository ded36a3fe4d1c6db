package client

import "context"

// Repository provides persistence for clients.
type Repository interface {
	Create(ctx context.Context, clinicID string, c *Client) error
	Get(ctx context.Context, clinicID, id string) (*Client, error)
	Update(ctx context.Context, clinicID, id string, patch Patch) (*Client, error)
	List(ctx context.Context, clinicID string, opts ListOptions) ([]Client, error)
}

// ListOptions filters client listings.
type ListOptions struct {
	Status      *string
	TherapistID *string
	Limit       int
	Offset      int
}
