package mcp

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rpggio/caseload/internal/domain/assignment"
	"github.com/stretchr/testify/require"
)

func TestMapError_CompensationFailed(t *testing.T) {
	cause := fmt.Errorf("%w: update client: write failed", assignment.ErrUpstreamFailure)
	err := &assignment.OpError{
		Op:         "start_over",
		ClientID:   "c1",
		Kind:       assignment.KindInconsistent,
		RolledBack: false,
		Err:        fmt.Errorf("%w: client c1 not restored: db down after %w", assignment.ErrCompensationFailed, cause),
	}

	apiErr := MapError(err)
	require.Equal(t, "COMPENSATION_FAILED", apiErr.Code)
	require.False(t, apiErr.Retryable)
	require.False(t, apiErr.RolledBack)
	require.NotEmpty(t, apiErr.RecoveryHint)
}

func TestMapError_RolledBackUpstream(t *testing.T) {
	err := &assignment.OpError{
		Op:         "assign",
		Kind:       assignment.KindUpstream,
		RolledBack: true,
		Err:        fmt.Errorf("%w: create assignment: %w", assignment.ErrUpstreamFailure, errors.New("reset")),
	}

	apiErr := MapError(err)
	require.Equal(t, "UPSTREAM_FAILURE", apiErr.Code)
	require.True(t, apiErr.Retryable)
	require.True(t, apiErr.RolledBack)
}
