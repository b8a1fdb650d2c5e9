package battles

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerSchedulerFires(t *testing.T) {
	scheduler := NewTimerScheduler()
	t.Cleanup(scheduler.Stop)

	var fired atomic.Int32
	err := scheduler.Schedule("battle-1", PhaseReadiness, 10*time.Millisecond, func() {
		fired.Add(1)
	})
	require.NoError(t, err)
	assert.True(t, scheduler.Pending("battle-1", PhaseReadiness))

	assert.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, scheduler.Pending("battle-1", PhaseReadiness))
}

func TestTimerSchedulerRefusesDoubleSchedule(t *testing.T) {
	scheduler := NewTimerScheduler()
	t.Cleanup(scheduler.Stop)

	require.NoError(t, scheduler.Schedule("battle-1", PhaseRound, time.Minute, func() {}))
	assert.ErrorIs(t, scheduler.Schedule("battle-1", PhaseRound, time.Minute, func() {}), ErrTimerPending)

	// A different phase for the same battle is an independent slot.
	assert.NoError(t, scheduler.Schedule("battle-1", PhaseReadiness, time.Minute, func() {}))
}

func TestTimerSchedulerCancel(t *testing.T) {
	scheduler := NewTimerScheduler()
	t.Cleanup(scheduler.Stop)

	var fired atomic.Int32
	require.NoError(t, scheduler.Schedule("battle-1", PhaseRound, 20*time.Millisecond, func() {
		fired.Add(1)
	}))

	assert.True(t, scheduler.Cancel("battle-1", PhaseRound))
	assert.False(t, scheduler.Pending("battle-1", PhaseRound))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	// Cancelling again, or cancelling the never-scheduled, reports false.
	assert.False(t, scheduler.Cancel("battle-1", PhaseRound))
	assert.False(t, scheduler.Cancel("battle-2", PhaseRound))
}

func TestTimerSchedulerReschedulableAfterFire(t *testing.T) {
	scheduler := NewTimerScheduler()
	t.Cleanup(scheduler.Stop)

	var fired atomic.Int32
	require.NoError(t, scheduler.Schedule("battle-1", PhaseRound, 5*time.Millisecond, func() {
		fired.Add(1)
	}))

	assert.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, time.Millisecond)

	// The slot is free once the timer fired.
	require.NoError(t, scheduler.Schedule("battle-1", PhaseRound, 5*time.Millisecond, func() {
		fired.Add(1)
	}))
	assert.Eventually(t, func() bool {
		return fired.Load() == 2
	}, time.Second, time.Millisecond)
}

func TestTimerSchedulerStop(t *testing.T) {
	scheduler := NewTimerScheduler()

	var fired atomic.Int32
	for _, battle_id := range []string{"a", "b", "c"} {
		require.NoError(t, scheduler.Schedule(battle_id, PhaseRound, 20*time.Millisecond, func() {
			fired.Add(1)
		}))
	}

	scheduler.Stop()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.False(t, scheduler.Pending("a", PhaseRound))
}
