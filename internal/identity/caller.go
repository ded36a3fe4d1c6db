package identity

import (
	"context"
	"errors"
	"fmt"
)

// Action describes the kind of operation a caller wants to perform.
type Action string

const (
	ActionViewClients        Action = "view_clients"
	ActionAssignClients      Action = "assign_clients"
	ActionAdvanceClients     Action = "advance_clients"
	ActionRecordSessions     Action = "record_sessions"
	ActionManageTherapists   Action = "manage_therapists"
	ActionManageSubscription Action = "manage_subscription"
)

var (
	// ErrUnauthenticated indicates no caller is attached to the context.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the caller's role does not permit the action.
	ErrForbidden = errors.New("forbidden")
)

var permissions = map[Role]map[Action]bool{
	RoleClinicAdmin: {
		ActionViewClients:        true,
		ActionAssignClients:      true,
		ActionAdvanceClients:     true,
		ActionRecordSessions:     true,
		ActionManageTherapists:   true,
		ActionManageSubscription: true,
	},
	RoleTherapist: {
		ActionViewClients:    true,
		ActionAdvanceClients: true,
		ActionRecordSessions: true,
	},
}

// Caller is the authenticated principal of a request.
type Caller struct {
	UserID   string `json:"user_id"`
	ClinicID string `json:"clinic_id"`
	Role     Role   `json:"role"`
}

// Can reports whether the caller may perform the action.
func (c Caller) Can(a Action) bool {
	if c.Role == RolePlatformAdmin {
		return true
	}
	return permissions[c.Role][a]
}

type callerKey struct{}

// WithCaller attaches a caller to ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller attached to ctx.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

// Authorize returns the caller when it may perform the action.
func Authorize(ctx context.Context, a Action) (Caller, error) {
	c, ok := CallerFrom(ctx)
	if !ok || c.ClinicID == "" {
		return Caller{}, ErrUnauthenticated
	}
	if !c.Can(a) {
		return Caller{}, fmt.Errorf("%w: %s may not %s", ErrForbidden, c.Role, a)
	}
	return c, nil
}
