package activity_test

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/caseload/internal/domain/activity"
	"github.com/rpggio/caseload/internal/domain/lifecycle"
	"github.com/rpggio/caseload/internal/events"
	"github.com/rpggio/caseload/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestActivityService_LogAndList(t *testing.T) {
	ctx := context.Background()
	clinicID := "clinic1"
	clientID := "c1"

	repo := &mocks.ActivityRepository{}
	entry := &activity.ActivityEntry{
		ClientID:     &clientID,
		ActivityType: activity.TypeStatusTransition,
		Summary:      "client c1 new -> assigned",
	}

	repo.On("Log", ctx, clinicID, entry).Return(nil)
	repo.On("List", ctx, clinicID, activity.ListActivityOptions{ClientID: &clientID, Limit: 10}).
		Return([]activity.ActivityEntry{*entry}, nil)

	svc := activity.NewService(repo, nil)
	require.NoError(t, svc.LogActivity(ctx, clinicID, entry))
	require.False(t, entry.CreatedAt.IsZero())

	history, err := svc.History(ctx, clinicID, clientID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)

	require.ErrorIs(t, svc.LogActivity(ctx, clinicID, nil), activity.ErrInvalidInput)
}

func TestEntryFromEnvelope(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	env := events.Envelope{
		ID:         "01HZX",
		Kind:       events.KindStatusTransitioned,
		ClinicID:   "clinic1",
		OccurredAt: at,
		Payload: events.StatusTransitioned{
			ClientID: "c1",
			From:     lifecycle.StatusConsultation,
			To:       lifecycle.StatusTherapy,
			Trigger:  lifecycle.TriggerAdvance,
		},
	}

	entry, err := activity.EntryFromEnvelope(env)
	require.NoError(t, err)
	require.Equal(t, activity.TypeStatusTransition, entry.ActivityType)
	require.Equal(t, "c1", *entry.ClientID)
	require.Equal(t, "01HZX", entry.EventID)
	require.Equal(t, at, entry.CreatedAt)
	require.Equal(t, "client c1 consultation -> therapy", entry.Summary)
	require.JSONEq(t, `{"client_id":"c1","from":"consultation","to":"therapy","trigger":"advance"}`, entry.Details)
}

func TestActivityService_RunRecordsBusEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := &mocks.ActivityRepository{}
	logged := make(chan *activity.ActivityEntry, 2)
	repo.On("Log", mock.Anything, "clinic1", mock.Anything).
		Run(func(args mock.Arguments) { logged <- args.Get(2).(*activity.ActivityEntry) }).
		Return(nil)

	bus := events.NewBus(nil)
	id, ch := bus.Subscribe(8)
	svc := activity.NewService(repo, nil)

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, ch) }()

	bus.Publish(ctx, "clinic1", events.AssignmentSucceeded{Op: "assign", ClientID: "c1", TherapistID: "t1"})
	entry := <-logged
	require.Equal(t, activity.TypeAssignmentSucceeded, entry.ActivityType)
	require.Equal(t, "assign: client c1 to therapist t1", entry.Summary)

	bus.Unsubscribe(id)
	require.NoError(t, <-done)
}
