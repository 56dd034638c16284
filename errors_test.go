package rttest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExitCode_DistinctPerKind verifies every kind has its own status.
func TestExitCode_DistinctPerKind(t *testing.T) {
	tests := []struct {
		kind error
		want int
	}{
		{ErrInvalidArgument, 2},
		{ErrPermission, 3},
		{ErrResourceExhausted, 4},
		{ErrClock, 5},
		{ErrInvalidState, 6},
		{ErrUsage, 7},
		{ErrUnsupported, 8},
	}

	seen := map[int]bool{}
	for _, tt := range tests {
		t.Run(tt.kind.Error(), func(t *testing.T) {
			err := newError("op", tt.kind, nil)
			assert.Equal(t, tt.want, err.ExitCode())
			assert.Equal(t, tt.want, ExitCode(err))
			assert.Equal(t, tt.want, ExitCode(fmt.Errorf("wrapped: %w", err)))
			assert.False(t, seen[tt.want])
			seen[tt.want] = true
		})
	}

	assert.Zero(t, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("other")))
}

// TestError_Unwrap verifies both kind and cause are reachable.
func TestError_Unwrap(t *testing.T) {
	cause := errors.New("EPERM")
	err := fmt.Errorf("setup: %w", newError("set sched priority", ErrPermission, cause))

	require.ErrorIs(t, err, ErrPermission)
	require.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrClock)

	var rtErr *Error
	require.ErrorAs(t, err, &rtErr)
	assert.Equal(t, "set sched priority", rtErr.Op)
	assert.Equal(t, "rttest: set sched priority: permission denied: EPERM", rtErr.Error())

	assert.Equal(t, "rttest: spin: invalid state", newError("spin", ErrInvalidState, nil).Error())
}

func TestInvalidArgument_FormatsCause(t *testing.T) {
	err := invalidArgument("validate config", "iterations must be positive, got %d", 0)

	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "iterations must be positive, got 0")
}
