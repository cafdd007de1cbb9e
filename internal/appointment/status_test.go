package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	cases := []struct {
		from    AppointmentStatus
		action  Action
		want    AppointmentStatus
		wantErr error
	}{
		{StatusPending, ActionConfirm, StatusConfirmed, nil},
		{StatusPending, ActionCancel, StatusCancelled, nil},
		{StatusPending, ActionComplete, StatusPending, ErrInvalidTransition},
		{StatusConfirmed, ActionComplete, StatusCompleted, nil},
		{StatusConfirmed, ActionCancel, StatusCancelled, nil},
		{StatusConfirmed, ActionConfirm, StatusConfirmed, ErrInvalidTransition},
		{StatusCancelled, ActionCancel, StatusCancelled, ErrAlreadyCancelled},
		{StatusCancelled, ActionConfirm, StatusCancelled, ErrInvalidTransition},
		{StatusCancelled, ActionComplete, StatusCancelled, ErrInvalidTransition},
		{StatusCompleted, ActionCancel, StatusCompleted, ErrTerminalState},
		{StatusCompleted, ActionConfirm, StatusCompleted, ErrInvalidTransition},
		{StatusCompleted, ActionComplete, StatusCompleted, ErrInvalidTransition},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"/"+string(tc.action), func(t *testing.T) {
			got, err := tc.from.Transition(tc.action)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTransition_TerminalStatesNeverMove(t *testing.T) {
	for _, s := range []AppointmentStatus{StatusCancelled, StatusCompleted} {
		require.True(t, s.IsTerminal())
		assert.False(t, s.CanReschedule())
		for _, a := range []Action{ActionConfirm, ActionComplete, ActionCancel} {
			_, err := s.Transition(a)
			assert.Error(t, err, "%s from %s", a, s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("confirmed")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, st)

	_, err = ParseStatus("Confirmed")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "status", verr.Field)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestIsActive(t *testing.T) {
	assert.True(t, StatusPending.IsActive())
	assert.True(t, StatusConfirmed.IsActive())
	assert.True(t, StatusCompleted.IsActive())
	assert.False(t, StatusCancelled.IsActive())
}
