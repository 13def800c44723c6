package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/models"
)

func st(l models.LifecycleState, p models.PermissionState) State {
	return State{Lifecycle: l, Permission: p}
}

func TestStart(t *testing.T) {
	m := New(true)

	s, err := m.Start(Log)
	require.NoError(t, err)
	assert.Equal(t, st(models.LifecycleCreated, models.PermissionPending), s)

	s, err = m.Start(ResidentPreApprove)
	require.NoError(t, err)
	assert.Equal(t, st(models.LifecyclePreApproved, models.PermissionAllowed), s)

	s, err = m.Start(AdminPreApprove)
	require.NoError(t, err)
	assert.Equal(t, st(models.LifecyclePreApproved, models.PermissionPreApproved), s)

	_, err = m.Start(CheckIn)
	assert.True(t, models.HasCode(err, models.CodeInvalidTransition))
}

func TestHappyPath(t *testing.T) {
	m := New(true)
	s, _ := m.Start(Log)

	var err error
	s, err = m.Apply(s, RequestPermission)
	require.NoError(t, err)
	assert.Equal(t, models.LifecyclePermissionRequested, s.Lifecycle)

	s, err = m.Apply(s, Allow)
	require.NoError(t, err)
	assert.Equal(t, st(models.LifecyclePermissionRequested, models.PermissionAllowed), s)

	s, err = m.Apply(s, CheckIn)
	require.NoError(t, err)
	assert.Equal(t, models.LifecycleInside, s.Lifecycle)

	s, err = m.Apply(s, CheckOut)
	require.NoError(t, err)
	assert.Equal(t, st(models.LifecycleExited, models.PermissionAllowed), s)
}

func TestDenyKeepsLifecycle(t *testing.T) {
	s, err := New(true).Apply(st(models.LifecycleCreated, models.PermissionPending), Deny)
	require.NoError(t, err)
	assert.Equal(t, st(models.LifecycleCreated, models.PermissionDenied), s)
}

func TestStrictPolicy(t *testing.T) {
	m := New(true)
	tests := []struct {
		name string
		from State
		ev   Event
		code string
	}{
		{"second exit", st(models.LifecycleExited, models.PermissionAllowed), CheckOut, models.CodeAlreadyExited},
		{"check-in after exit", st(models.LifecycleExited, models.PermissionAllowed), CheckIn, models.CodeAlreadyExited},
		{"second check-in", st(models.LifecycleInside, models.PermissionAllowed), CheckIn, models.CodeInvalidTransition},
		{"exit before entry", st(models.LifecycleCreated, models.PermissionAllowed), CheckOut, models.CodeInvalidTransition},
		{"deny after entry", st(models.LifecycleInside, models.PermissionAllowed), Deny, models.CodeInvalidTransition},
		{"allow pre-approved", st(models.LifecyclePreApproved, models.PermissionPreApproved), Allow, models.CodeInvalidTransition},
		{"check-in while denied", st(models.LifecycleCreated, models.PermissionDenied), CheckIn, models.CodeInvalidTransition},
		{"check-in while rejected", st(models.LifecyclePreApproved, models.PermissionRejected), CheckIn, models.CodeInvalidTransition},
		{"review after exit", st(models.LifecycleExited, models.PermissionAllowed), Approve, models.CodeInvalidTransition},
		{"request after entry", st(models.LifecycleInside, models.PermissionAllowed), RequestPermission, models.CodeInvalidTransition},
		{"unknown event", st(models.LifecycleCreated, models.PermissionPending), Log, models.CodeInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Apply(tt.from, tt.ev)
			require.Error(t, err)
			assert.True(t, models.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestAdminReviewOnLiveRecords(t *testing.T) {
	m := New(true)
	s, err := m.Apply(st(models.LifecycleInside, models.PermissionDenied), Approve)
	require.NoError(t, err)
	assert.Equal(t, st(models.LifecycleInside, models.PermissionApproved), s)
	assert.False(t, Alert(s))
}

func TestPermissivePolicy(t *testing.T) {
	m := New(false)

	s, err := m.Apply(st(models.LifecycleExited, models.PermissionAllowed), CheckOut)
	require.NoError(t, err)
	assert.Equal(t, models.LifecycleExited, s.Lifecycle)

	s, err = m.Apply(st(models.LifecycleInside, models.PermissionAllowed), Deny)
	require.NoError(t, err)
	assert.True(t, Alert(s))

	_, err = m.Apply(st(models.LifecycleCreated, models.PermissionDenied), CheckIn)
	assert.NoError(t, err)

	_, err = m.Apply(st(models.LifecycleExited, models.PermissionAllowed), CheckIn)
	assert.True(t, models.HasCode(err, models.CodeAlreadyExited))

	_, err = m.Apply(st(models.LifecycleCreated, models.PermissionAllowed), CheckOut)
	assert.True(t, models.HasCode(err, models.CodeInvalidTransition))
}

// Exit time is only ever set after entry, in either policy.
func TestNoExitWithoutEntry(t *testing.T) {
	for _, strict := range []bool{true, false} {
		m := New(strict)
		for _, l := range []models.LifecycleState{models.LifecycleCreated, models.LifecyclePermissionRequested, models.LifecyclePreApproved} {
			assert.False(t, m.Can(st(l, models.PermissionAllowed), CheckOut), "strict=%v from=%s", strict, l)
		}
	}
}

func TestTableCoversEveryNonCreationEvent(t *testing.T) {
	for _, ev := range Events() {
		_, isStart := initial[ev]
		_, inTable := table[ev]
		assert.True(t, isStart != inTable, "event %s must be exactly one of creation or transition", ev)
	}
}
