package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/caseload/internal/domain/client"
	"github.com/rpggio/caseload/internal/domain/lifecycle"
	"github.com/rpggio/caseload/internal/domain/therapist"
	"github.com/rpggio/caseload/internal/repository"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestClientRepository_CreateGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewClientRepository(db)

	joined := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	c := &client.Client{ID: "c1", Name: "Dana", Status: lifecycle.StatusNew, JoinDate: joined}
	require.NoError(t, repo.Create(ctx, "clinic1", c))

	loaded, err := repo.Get(ctx, "clinic1", "c1")
	require.NoError(t, err)
	require.Equal(t, "clinic1", loaded.ClinicID)
	require.Equal(t, "Dana", loaded.Name)
	require.Equal(t, lifecycle.StatusNew, loaded.Status)
	require.Nil(t, loaded.AssignedTherapistID)
	require.Nil(t, loaded.LastSession)
	require.True(t, joined.Equal(loaded.JoinDate))

	require.ErrorIs(t, repo.Create(ctx, "clinic1", c), repository.ErrConflict)
}

func TestClientRepository_TenantIsolation(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertClient(t, db, "clinic1", "c1")

	repo := NewClientRepository(db)
	_, err := repo.Get(ctx, "clinic2", "c1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	status := lifecycle.StatusAssigned
	_, err = repo.Update(ctx, "clinic2", "c1", client.Patch{Status: &status})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestClientRepository_UpdatePatch(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertTherapist(t, db, "clinic1", "t1", therapist.StatusActive, 0)
	insertClient(t, db, "clinic1", "c1")
	repo := NewClientRepository(db)

	status := lifecycle.StatusConsultation
	tid := "t1"
	updated, err := repo.Update(ctx, "clinic1", "c1", client.Patch{Status: &status, TherapistID: &tid})
	require.NoError(t, err)
	require.Equal(t, lifecycle.StatusConsultation, updated.Status)
	require.Equal(t, "t1", updated.TherapistID())

	total, progress := 3, 140
	last := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	updated, err = repo.Update(ctx, "clinic1", "c1", client.Patch{TotalSessions: &total, Progress: &progress, LastSession: &last})
	require.NoError(t, err)
	require.Equal(t, 3, updated.TotalSessions)
	require.Equal(t, 100, updated.Progress)
	require.NotNil(t, updated.LastSession)
	require.True(t, last.Equal(*updated.LastSession))
	require.Equal(t, "t1", updated.TherapistID())

	newStatus := lifecycle.StatusNew
	updated, err = repo.Update(ctx, "clinic1", "c1", client.Patch{Status: &newStatus, ClearTherapist: true})
	require.NoError(t, err)
	require.Nil(t, updated.AssignedTherapistID)
	require.Equal(t, lifecycle.StatusNew, updated.Status)
}

func TestClientRepository_AddSessionsIsCumulative(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertClient(t, db, "clinic1", "c1")
	repo := NewClientRepository(db)

	var eg errgroup.Group
	for range 8 {
		eg.Go(func() error {
			_, err := repo.Update(ctx, "clinic1", "c1", client.Patch{AddSessions: 1})
			return err
		})
	}
	require.NoError(t, eg.Wait())

	loaded, err := repo.Get(ctx, "clinic1", "c1")
	require.NoError(t, err)
	require.Equal(t, 8, loaded.TotalSessions)

	total := 2
	updated, err := repo.Update(ctx, "clinic1", "c1", client.Patch{TotalSessions: &total, AddSessions: 1})
	require.NoError(t, err)
	require.Equal(t, 3, updated.TotalSessions)
	require.Equal(t, 3, client.Patch{TotalSessions: &total, AddSessions: 1}.Apply(loaded).TotalSessions)
}

func TestClientRepository_UnknownTherapistRejected(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertClient(t, db, "clinic1", "c1")
	repo := NewClientRepository(db)

	tid := "ghost"
	_, err := repo.Update(ctx, "clinic1", "c1", client.Patch{TherapistID: &tid})
	require.ErrorIs(t, err, repository.ErrForeignKeyViolation)
}

func TestClientRepository_ListFilters(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertTherapist(t, db, "clinic1", "t1", therapist.StatusActive, 0)
	insertClient(t, db, "clinic1", "c1")
	insertClient(t, db, "clinic1", "c2")
	insertClient(t, db, "clinic1", "c3")
	insertClient(t, db, "clinic2", "c4")
	repo := NewClientRepository(db)

	status := lifecycle.StatusAssigned
	tid := "t1"
	_, err := repo.Update(ctx, "clinic1", "c2", client.Patch{Status: &status, TherapistID: &tid})
	require.NoError(t, err)

	all, err := repo.List(ctx, "clinic1", client.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	assigned := string(lifecycle.StatusAssigned)
	filtered, err := repo.List(ctx, "clinic1", client.ListOptions{Status: &assigned})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, "c2", filtered[0].ID)

	byTherapist, err := repo.List(ctx, "clinic1", client.ListOptions{TherapistID: &tid})
	require.NoError(t, err)
	require.Len(t, byTherapist, 1)

	page, err := repo.List(ctx, "clinic1", client.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
}
