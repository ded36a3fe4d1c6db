package mocks

import (
	"context"

	"github.com/rpggio/caseload/internal/domain/activity"
	"github.com/rpggio/caseload/internal/domain/assignment"
	"github.com/rpggio/caseload/internal/domain/client"
	"github.com/rpggio/caseload/internal/domain/lifecycle"
	"github.com/rpggio/caseload/internal/domain/quota"
	"github.com/rpggio/caseload/internal/domain/session"
	"github.com/rpggio/caseload/internal/domain/therapist"
	"github.com/stretchr/testify/mock"
)

// ClientRepository is a mock for client.Repository.
type ClientRepository struct {
	mock.Mock
}

func (m *ClientRepository) Create(ctx context.Context, clinicID string, c *client.Client) error {
	args := m.Called(ctx, clinicID, c)
	return args.Error(0)
}

func (m *ClientRepository) Get(ctx context.Context, clinicID, id string) (*client.Client, error) {
	args := m.Called(ctx, clinicID, id)
	if c, ok := args.Get(0).(*client.Client); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ClientRepository) Update(ctx context.Context, clinicID, id string, patch client.Patch) (*client.Client, error) {
	args := m.Called(ctx, clinicID, id, patch)
	if c, ok := args.Get(0).(*client.Client); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ClientRepository) List(ctx context.Context, clinicID string, opts client.ListOptions) ([]client.Client, error) {
	args := m.Called(ctx, clinicID, opts)
	if list, ok := args.Get(0).([]client.Client); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// TherapistRepository is a mock for therapist.Repository.
type TherapistRepository struct {
	mock.Mock
}

func (m *TherapistRepository) Create(ctx context.Context, clinicID string, t *therapist.Therapist) error {
	args := m.Called(ctx, clinicID, t)
	return args.Error(0)
}

func (m *TherapistRepository) Get(ctx context.Context, clinicID, id string) (*therapist.Therapist, error) {
	args := m.Called(ctx, clinicID, id)
	if t, ok := args.Get(0).(*therapist.Therapist); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TherapistRepository) SetActivityStatus(ctx context.Context, clinicID, id string, status therapist.ActivityStatus) error {
	args := m.Called(ctx, clinicID, id, status)
	return args.Error(0)
}

func (m *TherapistRepository) List(ctx context.Context, clinicID string) ([]therapist.Therapist, error) {
	args := m.Called(ctx, clinicID)
	if list, ok := args.Get(0).([]therapist.Therapist); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// AssignmentRepository is a mock for assignment.Repository.
type AssignmentRepository struct {
	mock.Mock
}

func (m *AssignmentRepository) Create(ctx context.Context, clinicID string, a *assignment.Assignment) error {
	args := m.Called(ctx, clinicID, a)
	return args.Error(0)
}

func (m *AssignmentRepository) Get(ctx context.Context, clinicID, id string) (*assignment.Assignment, error) {
	args := m.Called(ctx, clinicID, id)
	if a, ok := args.Get(0).(*assignment.Assignment); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AssignmentRepository) Delete(ctx context.Context, clinicID, id string) error {
	args := m.Called(ctx, clinicID, id)
	return args.Error(0)
}

func (m *AssignmentRepository) ListByClient(ctx context.Context, clinicID, clientID string) ([]assignment.Assignment, error) {
	args := m.Called(ctx, clinicID, clientID)
	if list, ok := args.Get(0).([]assignment.Assignment); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// SubscriptionRepository is a mock for quota.Repository.
type SubscriptionRepository struct {
	mock.Mock
}

func (m *SubscriptionRepository) Create(ctx context.Context, sub *quota.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *SubscriptionRepository) Get(ctx context.Context, clinicID string) (*quota.Subscription, error) {
	args := m.Called(ctx, clinicID)
	if sub, ok := args.Get(0).(*quota.Subscription); ok {
		return sub, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SubscriptionRepository) Update(ctx context.Context, sub *quota.Subscription, expectedVersion int64) error {
	args := m.Called(ctx, sub, expectedVersion)
	return args.Error(0)
}

// SessionRepository is a mock for session.Repository.
type SessionRepository struct {
	mock.Mock
}

func (m *SessionRepository) Create(ctx context.Context, clinicID string, sess *session.Session) error {
	args := m.Called(ctx, clinicID, sess)
	return args.Error(0)
}

func (m *SessionRepository) Get(ctx context.Context, clinicID, id string) (*session.Session, error) {
	args := m.Called(ctx, clinicID, id)
	if sess, ok := args.Get(0).(*session.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) Update(ctx context.Context, clinicID string, sess *session.Session, expected lifecycle.SessionStatus) error {
	args := m.Called(ctx, clinicID, sess, expected)
	return args.Error(0)
}

func (m *SessionRepository) ListByClient(ctx context.Context, clinicID, clientID string) ([]session.Session, error) {
	args := m.Called(ctx, clinicID, clientID)
	if list, ok := args.Get(0).([]session.Session); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, clinicID string, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, clinicID, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, clinicID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, clinicID, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// QuotaGate is a mock for the quota gate consumed by services.
type QuotaGate struct {
	mock.Mock
}

func (m *QuotaGate) Reserve(ctx context.Context, clinicID string, metric quota.Metric) (quota.Release, error) {
	args := m.Called(ctx, clinicID, metric)
	if release, ok := args.Get(0).(quota.Release); ok {
		return release, args.Error(1)
	}
	return nil, args.Error(1)
}
