package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateCompositionScenario(t *testing.T) {
	// Scenario 4 from spec §8.
	root, err := New([]int{2, 98})
	require.NoError(t, err)

	require.NoError(t, root.StepDone())
	assert.Equal(t, 2, root.Percentage())

	child, err := root.Child()
	require.NoError(t, err)
	require.NoError(t, child.SetNumberSteps(4))

	require.NoError(t, child.StepDone())
	require.NoError(t, child.StepDone())

	assert.Equal(t, 50, child.Percentage())
	assert.Equal(t, 51, root.Percentage())
}

func TestStepDoneSequenceReachesExactly100(t *testing.T) {
	s, err := NewSteps(7)
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		require.NoError(t, s.StepDone())
	}
	assert.Equal(t, 100, s.Percentage())
	assert.ErrorIs(t, s.StepDone(), ErrStateInvalid)
}

func TestPercentageMonotonic(t *testing.T) {
	s, err := NewSteps(5)
	require.NoError(t, err)
	last := -1
	for i := 0; i < 5; i++ {
		require.NoError(t, s.StepDone())
		assert.GreaterOrEqual(t, s.Percentage(), last)
		last = s.Percentage()
	}
}

func TestNewRejectsBadWeights(t *testing.T) {
	_, err := New([]int{10, 10})
	assert.ErrorIs(t, err, ErrWeightsInvalid)
}

func TestFinishedShortCircuits(t *testing.T) {
	s, err := NewSteps(10)
	require.NoError(t, err)
	require.NoError(t, s.Finished())
	assert.Equal(t, 100, s.Percentage())
}

func TestCancelPropagatesToChildren(t *testing.T) {
	root, err := New([]int{50, 50})
	require.NoError(t, err)
	child, err := root.Child()
	require.NoError(t, err)
	require.NoError(t, child.SetNumberSteps(2))

	require.True(t, root.Cancel())
	assert.True(t, child.IsCancelled())
	assert.ErrorIs(t, child.StepDone(), ErrCancelled)
}

func TestCancelRejectedWhenNotAllowed(t *testing.T) {
	s, err := NewSteps(2)
	require.NoError(t, err)
	s.SetAllowCancel(false)
	assert.False(t, s.Cancel())
	assert.False(t, s.IsCancelled())
}

func TestLocksReleasedOnEveryPath(t *testing.T) {
	s, err := NewSteps(1)
	require.NoError(t, err)
	s.TakeLock("rpmdb", LockProcess)
	s.ReleaseLocks()
	// Taking the same named lock again must not deadlock, proving the
	// first acquisition was actually released.
	done := make(chan struct{})
	go func() {
		s2, _ := NewSteps(1)
		s2.TakeLock("rpmdb", LockProcess)
		s2.ReleaseLocks()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out acquiring a lock that should have been released")
	}
}
