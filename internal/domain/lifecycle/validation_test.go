package lifecycle_test

import (
	"testing"

	"github.com/rpggio/caseload/internal/domain/lifecycle"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition_Totality(t *testing.T) {
	allowed := map[[2]lifecycle.ClientStatus]bool{
		{lifecycle.StatusNew, lifecycle.StatusAssigned}:          true,
		{lifecycle.StatusAssigned, lifecycle.StatusConsultation}: true,
		{lifecycle.StatusConsultation, lifecycle.StatusTherapy}:  true,
		{lifecycle.StatusTherapy, lifecycle.StatusDone}:          true,
	}

	statuses := append([]lifecycle.ClientStatus{"", "archived"}, lifecycle.ClientStatuses...)
	for _, from := range statuses {
		for _, to := range statuses {
			var err error
			require.NotPanics(t, func() { err = lifecycle.ValidateTransition(from, to) })
			if allowed[[2]lifecycle.ClientStatus{from, to}] {
				require.NoError(t, err, "%s -> %s", from, to)
				continue
			}
			require.ErrorIs(t, err, lifecycle.ErrInvalidTransition, "%s -> %s", from, to)

			var terr *lifecycle.TransitionError
			require.ErrorAs(t, err, &terr)
			require.Equal(t, from, terr.From)
			require.Equal(t, to, terr.To)
		}
	}
}

func TestValidateReassignment(t *testing.T) {
	for _, from := range []lifecycle.ClientStatus{
		lifecycle.StatusNew,
		lifecycle.StatusAssigned,
		lifecycle.StatusConsultation,
		lifecycle.StatusTherapy,
	} {
		require.NoError(t, lifecycle.ValidateReassignment(from, "needs specialist"), from)
		require.ErrorIs(t, lifecycle.ValidateReassignment(from, "  "), lifecycle.ErrMissingReason, from)
	}

	require.ErrorIs(t, lifecycle.ValidateReassignment(lifecycle.StatusDone, "reopen"), lifecycle.ErrInvalidTransition)
}

func TestValidate_ReassignOnlyTargetsConsultation(t *testing.T) {
	err := lifecycle.Validate(lifecycle.Transition{
		From:    lifecycle.StatusTherapy,
		To:      lifecycle.StatusAssigned,
		Trigger: lifecycle.TriggerReassign,
		Reason:  "x",
	})
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestValidateRelease(t *testing.T) {
	require.NoError(t, lifecycle.ValidateRelease(lifecycle.StatusAssigned))
	require.NoError(t, lifecycle.ValidateRelease(lifecycle.StatusTherapy))
	require.ErrorIs(t, lifecycle.ValidateRelease(lifecycle.StatusNew), lifecycle.ErrInvalidTransition)
	require.ErrorIs(t, lifecycle.ValidateRelease(lifecycle.StatusDone), lifecycle.ErrInvalidTransition)
}

func TestValidateSessionTransition(t *testing.T) {
	require.NoError(t, lifecycle.ValidateSessionTransition(lifecycle.SessionNew, lifecycle.SessionScheduled))
	require.NoError(t, lifecycle.ValidateSessionTransition(lifecycle.SessionScheduled, lifecycle.SessionStarted))
	require.NoError(t, lifecycle.ValidateSessionTransition(lifecycle.SessionStarted, lifecycle.SessionCompleted))
	require.NoError(t, lifecycle.ValidateSessionTransition(lifecycle.SessionCancelled, lifecycle.SessionScheduled))
	require.NoError(t, lifecycle.ValidateSessionTransition(lifecycle.SessionNoShow, lifecycle.SessionScheduled))

	for _, to := range lifecycle.SessionStatuses {
		err := lifecycle.ValidateSessionTransition(lifecycle.SessionCompleted, to)
		require.ErrorIs(t, err, lifecycle.ErrInvalidTransition, "completed -> %s", to)
	}
	for _, s := range lifecycle.SessionStatuses {
		require.Error(t, lifecycle.ValidateSessionTransition(s, s), "self transition %s", s)
	}
}
