package sqlstore

import (
	"context"
	"testing"

	"github.com/rpggio/caseload/internal/domain/client"
	"github.com/rpggio/caseload/internal/domain/lifecycle"
	"github.com/rpggio/caseload/internal/domain/therapist"
	"github.com/rpggio/caseload/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestTherapistRepository_CurrentLoadCountsActiveClients(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertTherapist(t, db, "clinic1", "t1", therapist.StatusActive, 2)
	insertClient(t, db, "clinic1", "c1")
	insertClient(t, db, "clinic1", "c2")
	insertClient(t, db, "clinic1", "c3")

	clients := NewClientRepository(db)
	tid := "t1"
	for id, status := range map[string]lifecycle.ClientStatus{
		"c1": lifecycle.StatusConsultation,
		"c2": lifecycle.StatusTherapy,
		"c3": lifecycle.StatusDone,
	} {
		s := status
		_, err := clients.Update(ctx, "clinic1", id, client.Patch{Status: &s, TherapistID: &tid})
		require.NoError(t, err)
	}

	repo := NewTherapistRepository(db)
	th, err := repo.Get(ctx, "clinic1", "t1")
	require.NoError(t, err)
	require.Equal(t, 2, th.CurrentLoad)
	require.False(t, th.HasCapacity())
}

func TestTherapistRepository_SetActivityStatus(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertTherapist(t, db, "clinic1", "t1", therapist.StatusPendingSetup, 0)
	repo := NewTherapistRepository(db)

	require.NoError(t, repo.SetActivityStatus(ctx, "clinic1", "t1", therapist.StatusActive))
	th, err := repo.Get(ctx, "clinic1", "t1")
	require.NoError(t, err)
	require.True(t, th.Active())

	require.ErrorIs(t, repo.SetActivityStatus(ctx, "clinic1", "t9", therapist.StatusActive), repository.ErrNotFound)
	_, err = repo.Get(ctx, "clinic2", "t1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	list, err := repo.List(ctx, "clinic1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}
