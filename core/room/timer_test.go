package room

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shrinkTick speeds the countdown up for the duration of a test.
func shrinkTick(t *testing.T, d time.Duration) {
	t.Helper()
	orig := tickInterval
	tickInterval = d
	t.Cleanup(func() { tickInterval = orig })
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func timerRoom(t *testing.T, reg *Registry) (string, *testConn) {
	t.Helper()
	key := newSharedRoom(t, reg, "Focus", 5)
	c := newTestConn()
	_, err := reg.Join(c, uuid.NewString(), "Awe", key)
	require.NoError(t, err)
	return key, c
}

func TestTimer_RunsToCompletion(t *testing.T) {
	shrinkTick(t, 5*time.Millisecond)
	reg := NewRegistry(newTestLogger())
	key, c := timerRoom(t, reg)

	state, err := reg.StartTimer(key, c.id, TimerPomodoro, 3)
	require.NoError(t, err)
	assert.True(t, state.IsRunning)
	assert.Equal(t, 3, state.RemainingSeconds)
	assert.Equal(t, 1, c.count("pomodoroStarted"))

	waitFor(t, time.Second, func() bool {
		pomo, _, err := reg.TimerStates(key, c.id)
		return err == nil && !pomo.IsRunning && pomo.CompletedSessions == 1
	}, "timer never completed")

	// drained countdowns complete exactly once
	time.Sleep(20 * tickInterval)
	assert.Equal(t, 1, c.count("pomodoroComplete"))
	assert.Equal(t, 2, c.count("pomodoroTick"))

	pomo, _, err := reg.TimerStates(key, c.id)
	require.NoError(t, err)
	assert.Zero(t, pomo.RemainingSeconds)
	assert.Equal(t, 1, pomo.CompletedSessions)
}

func TestTimer_PauseAndResume(t *testing.T) {
	shrinkTick(t, 5*time.Millisecond)
	reg := NewRegistry(newTestLogger())
	key, c := timerRoom(t, reg)

	_, err := reg.StartTimer(key, c.id, TimerPomodoro, 1000)
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool { return c.count("pomodoroTick") >= 3 }, "no ticks observed")

	state, err := reg.PauseTimer(key, c.id, TimerPomodoro)
	require.NoError(t, err)
	assert.False(t, state.IsRunning)
	assert.Greater(t, state.RemainingSeconds, 0)
	assert.Less(t, state.RemainingSeconds, 1000)
	assert.Equal(t, 1, c.count("pomodoroPaused"))

	// a pause really stops the countdown
	remaining := state.RemainingSeconds
	time.Sleep(10 * tickInterval)
	pomo, _, err := reg.TimerStates(key, c.id)
	require.NoError(t, err)
	assert.Equal(t, remaining, pomo.RemainingSeconds)

	// resuming picks the countdown back up, not a fresh interval
	state, err = reg.StartTimer(key, c.id, TimerPomodoro, 0)
	require.NoError(t, err)
	assert.True(t, state.IsRunning)
	assert.Equal(t, remaining, state.RemainingSeconds)
	assert.Equal(t, 1000, state.TotalDurationSeconds)
}

func TestTimer_RestartDoesNotDoubleSpeed(t *testing.T) {
	shrinkTick(t, 10*time.Millisecond)
	reg := NewRegistry(newTestLogger())
	key, c := timerRoom(t, reg)

	// a second start supersedes the first ticker instead of stacking on it
	_, err := reg.StartTimer(key, c.id, TimerPomodoro, 1000)
	require.NoError(t, err)
	_, err = reg.StartTimer(key, c.id, TimerPomodoro, 1000)
	require.NoError(t, err)

	time.Sleep(30 * tickInterval)
	_, err = reg.PauseTimer(key, c.id, TimerPomodoro)
	require.NoError(t, err)

	ticks := c.count("pomodoroTick")
	assert.LessOrEqual(t, ticks, 45, "tick rate indicates stacked tickers")
	assert.Greater(t, ticks, 0)
}

func TestTimer_ResetKeepsCompletedSessions(t *testing.T) {
	shrinkTick(t, 5*time.Millisecond)
	reg := NewRegistry(newTestLogger())
	key, c := timerRoom(t, reg)

	_, err := reg.StartTimer(key, c.id, TimerPomodoro, 1)
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return c.count("pomodoroComplete") == 1 }, "timer never completed")

	_, err = reg.StartTimer(key, c.id, TimerPomodoro, 500)
	require.NoError(t, err)
	state, err := reg.ResetTimer(key, c.id, TimerPomodoro)
	require.NoError(t, err)
	assert.False(t, state.IsRunning)
	assert.Zero(t, state.RemainingSeconds)
	assert.Equal(t, 1, state.CompletedSessions)
	assert.Equal(t, 1, c.count("pomodoroReset"))
}

func TestTimer_ChangeDuration(t *testing.T) {
	reg := NewRegistry(newTestLogger())
	key, c := timerRoom(t, reg)

	_, err := reg.StartTimer(key, c.id, TimerBreak, 300)
	require.NoError(t, err)

	_, err = reg.ChangeDuration(key, c.id, TimerBreak, 600)
	assert.ErrorIs(t, err, ErrTimerRunning)
	assert.Zero(t, c.count(EvtDurationUpdated), "a rejected change must not broadcast")

	_, err = reg.PauseTimer(key, c.id, TimerBreak)
	require.NoError(t, err)

	state, err := reg.ChangeDuration(key, c.id, TimerBreak, 600)
	require.NoError(t, err)
	assert.Equal(t, 600, state.TotalDurationSeconds)
	assert.Equal(t, 600, state.RemainingSeconds)
	// the originator converges with everyone else
	assert.Equal(t, 1, c.count(EvtDurationUpdated))
}

func TestTimer_KindsAreIndependent(t *testing.T) {
	shrinkTick(t, 5*time.Millisecond)
	reg := NewRegistry(newTestLogger())
	key, c := timerRoom(t, reg)

	_, err := reg.StartTimer(key, c.id, TimerPomodoro, 1000)
	require.NoError(t, err)
	_, err = reg.StartTimer(key, c.id, TimerBreak, 1000)
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool {
		return c.count("pomodoroTick") >= 2 && c.count("breakTick") >= 2
	}, "both timers should tick")

	_, err = reg.PauseTimer(key, c.id, TimerBreak)
	require.NoError(t, err)
	pomo, brk, err := reg.TimerStates(key, c.id)
	require.NoError(t, err)
	assert.True(t, pomo.IsRunning)
	assert.False(t, brk.IsRunning)
}

func TestTimer_UnknownKind(t *testing.T) {
	reg := NewRegistry(newTestLogger())
	key, c := timerRoom(t, reg)

	_, err := reg.StartTimer(key, c.id, "nap", 60)
	assert.ErrorIs(t, err, ErrUnknownTimer)
	_, err = reg.PauseTimer(key, c.id, "nap")
	assert.ErrorIs(t, err, ErrUnknownTimer)
	_, err = reg.ResetTimer(key, c.id, "nap")
	assert.ErrorIs(t, err, ErrUnknownTimer)
	_, err = reg.ChangeDuration(key, c.id, "nap", 60)
	assert.ErrorIs(t, err, ErrUnknownTimer)
}
