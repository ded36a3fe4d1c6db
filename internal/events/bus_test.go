package events_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/rpggio/caseload/internal/domain/lifecycle"
	"github.com/rpggio/caseload/internal/domain/quota"
	"github.com/rpggio/caseload/internal/events"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus(nil)

	id, ch := bus.Subscribe(4)
	env := bus.Publish(ctx, "clinic1", events.StatusTransitioned{
		ClientID: "c1",
		From:     lifecycle.StatusNew,
		To:       lifecycle.StatusAssigned,
		Trigger:  lifecycle.TriggerAdvance,
	})
	require.NotEmpty(t, env.ID)
	require.Equal(t, events.KindStatusTransitioned, env.Kind)

	got := <-ch
	require.Equal(t, env.ID, got.ID)
	require.Equal(t, "c1", got.ClientID())

	bus.Unsubscribe(id)
	_, open := <-ch
	require.False(t, open)
}

func TestBus_DropsWhenSubscriberFull(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	bus := events.NewBus(slog.New(slog.NewJSONHandler(&logs, nil)))
	_, ch := bus.Subscribe(1)

	bus.Publish(ctx, "clinic1", events.AssignmentSucceeded{Op: "assign", ClientID: "c1"})
	missed := bus.Publish(ctx, "clinic1", events.AssignmentSucceeded{Op: "assign", ClientID: "c2"})

	require.Len(t, ch, 1)
	require.Equal(t, "c1", (<-ch).ClientID())
	require.EqualValues(t, 1, bus.Dropped())
	require.Contains(t, logs.String(), `"event_id":"`+missed.ID+`"`)
}

func TestBus_DurableSubscriberReceivesEverything(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus(nil)
	id, ch := bus.SubscribeDurable(1)
	_, lossy := bus.Subscribe(1)

	const n = 50
	var published []string
	for range n {
		env := bus.Publish(ctx, "clinic1", events.AssignmentSucceeded{Op: "assign", ClientID: "c1"})
		published = append(published, env.ID)
	}

	var got []string
	for range n {
		got = append(got, (<-ch).ID)
	}
	require.Equal(t, published, got)
	require.Len(t, lossy, 1)
	require.EqualValues(t, n-1, bus.Dropped())

	bus.Unsubscribe(id)
	_, open := <-ch
	require.False(t, open)
}

func TestBus_RecentFiltersByClinic(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus(nil)

	bus.Publish(ctx, "clinic1", events.AssignmentSucceeded{Op: "assign", ClientID: "c1"})
	bus.Publish(ctx, "clinic2", events.AssignmentSucceeded{Op: "assign", ClientID: "x1"})
	bus.PublishAlerts(ctx, "clinic1", []quota.UsageAlert{{Metric: quota.MetricScriptsToday, Type: quota.AlertWarning}})

	recent := bus.Recent("clinic1", 0)
	require.Len(t, recent, 2)
	require.Equal(t, events.KindAssignmentSucceeded, recent[0].Kind)
	require.Equal(t, events.KindUsageAlertRaised, recent[1].Kind)

	require.Len(t, bus.Recent("", 1), 1)
}

func TestBus_CloseEndsSubscriptions(t *testing.T) {
	bus := events.NewBus(nil)
	_, ch := bus.Subscribe(1)
	bus.Close()

	_, open := <-ch
	require.False(t, open)

	bus.Publish(context.Background(), "clinic1", events.AssignmentFailed{ClientID: "c1"})
	require.Empty(t, bus.Recent("", 0))
}
