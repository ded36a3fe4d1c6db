package cache_test

import (
	"testing"
	"time"

	"github.com/rpggio/caseload/internal/cache"
	"github.com/rpggio/caseload/internal/domain/client"
	"github.com/rpggio/caseload/internal/domain/lifecycle"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func sampleClient() *client.Client {
	last := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	return &client.Client{
		ID:                  "c1",
		ClinicID:            "clinic1",
		Name:                "Dana",
		Status:              lifecycle.StatusTherapy,
		AssignedTherapistID: ptr("t1"),
		TotalSessions:       4,
		Progress:            40,
		LastSession:         &last,
	}
}

func TestCache_RollbackRestoresExactEntry(t *testing.T) {
	c := cache.New(nil)
	orig := sampleClient()
	c.Put(orig)
	before, ok := c.Get("clinic1", "c1")
	require.True(t, ok)

	snap, err := c.Begin("clinic1", "c1", func(cl *client.Client) {
		cl.Status = lifecycle.StatusConsultation
		*cl.AssignedTherapistID = "t2"
		cl.Progress = 0
	})
	require.NoError(t, err)

	during, _ := c.Get("clinic1", "c1")
	require.Equal(t, lifecycle.StatusConsultation, during.Status)
	require.Equal(t, "t2", during.TherapistID())

	require.NoError(t, c.Rollback(snap))
	after, ok := c.Get("clinic1", "c1")
	require.True(t, ok)
	require.Equal(t, before, after)
	require.Equal(t, orig, after)
	require.Zero(t, c.Pending())
}

func TestCache_RollbackOfUncachedEntryRemovesIt(t *testing.T) {
	c := cache.New(nil)

	snap, err := c.Begin("clinic1", "c9", func(cl *client.Client) {
		cl.Status = lifecycle.StatusAssigned
	})
	require.NoError(t, err)
	_, ok := c.Get("clinic1", "c9")
	require.True(t, ok)

	require.NoError(t, c.Rollback(snap))
	_, ok = c.Get("clinic1", "c9")
	require.False(t, ok)
}

func TestCache_ConfirmStoresServerRecord(t *testing.T) {
	c := cache.New(nil)
	c.Put(sampleClient())

	snap, err := c.Begin("clinic1", "c1", func(cl *client.Client) { cl.Progress = 99 })
	require.NoError(t, err)

	server := sampleClient()
	server.Progress = 45
	require.NoError(t, c.Confirm(snap, server))

	got, _ := c.Get("clinic1", "c1")
	require.Equal(t, 45, got.Progress)
}

func TestCache_SettleTwiceFails(t *testing.T) {
	c := cache.New(nil)
	c.Put(sampleClient())

	snap, err := c.Begin("clinic1", "c1", nil)
	require.NoError(t, err)
	require.NoError(t, c.Confirm(snap, nil))

	require.ErrorIs(t, c.Rollback(snap), cache.ErrSnapshotSettled)
	require.ErrorIs(t, c.Confirm(snap, nil), cache.ErrSnapshotSettled)
	require.ErrorIs(t, c.Rollback(nil), cache.ErrUnknownSnapshot)

	other := cache.New(nil)
	foreign, err := other.Begin("clinic1", "c1", nil)
	require.NoError(t, err)
	require.ErrorIs(t, c.Rollback(foreign), cache.ErrUnknownSnapshot)
}

func TestCache_OnePendingSnapshotPerClient(t *testing.T) {
	c := cache.New(nil)
	c.Put(sampleClient())

	snap, err := c.Begin("clinic1", "c1", nil)
	require.NoError(t, err)

	_, err = c.Begin("clinic1", "c1", nil)
	require.ErrorIs(t, err, cache.ErrSnapshotPending)

	_, err = c.Begin("clinic2", "c1", nil)
	require.NoError(t, err)

	require.NoError(t, c.Rollback(snap))
	_, err = c.Begin("clinic1", "c1", nil)
	require.NoError(t, err)
}

func TestCache_PutIgnoredWhilePending(t *testing.T) {
	c := cache.New(nil)
	c.Put(sampleClient())

	snap, err := c.Begin("clinic1", "c1", func(cl *client.Client) { cl.Name = "speculative" })
	require.NoError(t, err)

	stale := sampleClient()
	stale.Name = "stale"
	c.Put(stale)

	got, _ := c.Get("clinic1", "c1")
	require.Equal(t, "speculative", got.Name)
	require.NoError(t, c.Rollback(snap))
}

func TestCache_CloseReportsLeakedSnapshots(t *testing.T) {
	c := cache.New(nil)
	c.Put(sampleClient())

	_, err := c.Begin("clinic1", "c1", func(cl *client.Client) { cl.Progress = 0 })
	require.NoError(t, err)
	require.Equal(t, 1, c.Pending())

	err = c.Close()
	require.ErrorIs(t, err, cache.ErrLeakedSnapshots)
	require.Zero(t, c.Pending())

	got, _ := c.Get("clinic1", "c1")
	require.Equal(t, 40, got.Progress)
	require.NoError(t, c.Close())
}
