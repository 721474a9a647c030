package room

import "time"

// tickInterval is the countdown period. Shrunk by tests.
var tickInterval = time.Second

// TimerEventName builds the outbound event name for a timer kind,
// e.g. ("pomodoro", "Tick") -> "pomodoroTick".
func TimerEventName(kind, suffix string) string {
	return kind + suffix
}

// TickPayload is broadcast on every countdown tick.
type TickPayload struct {
	RemainingSeconds int  `json:"remainingSeconds"`
	IsRunning        bool `json:"isRunning"`
}

// cancel stops the timer's live ticker, if any. Idempotent. Callers must
// hold the owning room's lock.
func (t *timer) cancel() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.IsRunning = false
}

// StartTimer starts or resumes the countdown for one timer kind. A paused
// timer resumes from its remaining seconds; otherwise the countdown begins
// fresh from the configured duration (or durationSeconds when > 0). Any
// pre-existing ticker for the kind is cancelled first so at most one tick
// stream exists per room per timer.
func (reg *Registry) StartTimer(key, connID, kind string, durationSeconds int) (TimerState, error) {
	r, err := reg.room(key)
	if err != nil {
		return TimerState{}, err
	}

	r.mu.Lock()
	if err = r.requireMember(connID); err != nil {
		r.mu.Unlock()
		return TimerState{}, err
	}
	t, ok := r.timers[kind]
	if !ok {
		r.mu.Unlock()
		return TimerState{}, ErrUnknownTimer
	}
	t.cancel()

	resuming := t.RemainingSeconds > 0 && t.RemainingSeconds < t.TotalDurationSeconds
	if !resuming {
		if durationSeconds > 0 {
			t.TotalDurationSeconds = durationSeconds
		}
		t.RemainingSeconds = t.TotalDurationSeconds
	}
	t.IsRunning = true
	stop := make(chan struct{})
	t.stop = stop
	state := t.TimerState
	conns := r.conns()
	r.mu.Unlock()

	go reg.runTicker(r, kind, stop)

	broadcast(conns, TimerEventName(kind, "Started"), state)
	return state, nil
}

// PauseTimer cancels the ticker and preserves the remaining seconds.
func (reg *Registry) PauseTimer(key, connID, kind string) (TimerState, error) {
	r, err := reg.room(key)
	if err != nil {
		return TimerState{}, err
	}

	r.mu.Lock()
	if err = r.requireMember(connID); err != nil {
		r.mu.Unlock()
		return TimerState{}, err
	}
	t, ok := r.timers[kind]
	if !ok {
		r.mu.Unlock()
		return TimerState{}, ErrUnknownTimer
	}
	t.cancel()
	state := t.TimerState
	conns := r.conns()
	r.mu.Unlock()

	broadcast(conns, TimerEventName(kind, "Paused"), state)
	return state, nil
}

// ResetTimer cancels the ticker and zeroes the countdown. The completed
// session count survives a reset.
func (reg *Registry) ResetTimer(key, connID, kind string) (TimerState, error) {
	r, err := reg.room(key)
	if err != nil {
		return TimerState{}, err
	}

	r.mu.Lock()
	if err = r.requireMember(connID); err != nil {
		r.mu.Unlock()
		return TimerState{}, err
	}
	t, ok := r.timers[kind]
	if !ok {
		r.mu.Unlock()
		return TimerState{}, ErrUnknownTimer
	}
	t.cancel()
	t.RemainingSeconds = 0
	state := t.TimerState
	conns := r.conns()
	r.mu.Unlock()

	broadcast(conns, TimerEventName(kind, "Reset"), state)
	return state, nil
}

// ChangeDuration reconfigures a stopped timer. A running timer keeps its
// duration; callers get ErrTimerRunning and no broadcast happens. The new
// duration is broadcast to every member, the originator included, so every
// client's displayed duration stays consistent.
func (reg *Registry) ChangeDuration(key, connID, kind string, durationSeconds int) (TimerState, error) {
	r, err := reg.room(key)
	if err != nil {
		return TimerState{}, err
	}

	r.mu.Lock()
	if err = r.requireMember(connID); err != nil {
		r.mu.Unlock()
		return TimerState{}, err
	}
	t, ok := r.timers[kind]
	if !ok {
		r.mu.Unlock()
		return TimerState{}, ErrUnknownTimer
	}
	if t.IsRunning {
		r.mu.Unlock()
		return TimerState{}, ErrTimerRunning
	}
	t.TotalDurationSeconds = durationSeconds
	t.RemainingSeconds = durationSeconds
	state := t.TimerState
	conns := r.conns()
	r.mu.Unlock()

	broadcast(conns, EvtDurationUpdated, durationUpdate{Timer: kind, TimerState: state})
	return state, nil
}

type durationUpdate struct {
	Timer string `json:"timer"`
	TimerState
}

// TimerStates returns the current state of both of a room's timers.
func (reg *Registry) TimerStates(key, connID string) (pomodoro, brk TimerState, err error) {
	r, err := reg.room(key)
	if err != nil {
		return TimerState{}, TimerState{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err = r.requireMember(connID); err != nil {
		return TimerState{}, TimerState{}, err
	}
	return r.timers[TimerPomodoro].TimerState, r.timers[TimerBreak].TimerState, nil
}

// runTicker drives one countdown. Each tick's broadcast completes before the
// next tick is read, keeping ticks strictly sequential per timer. The stop
// channel identity guards against a superseded ticker touching state that a
// newer start owns.
func (reg *Registry) runTicker(r *Room, kind string, stop chan struct{}) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if done := reg.tick(r, kind, stop); done {
				return
			}
		}
	}
}

// tick applies one countdown step. Reaching zero completes the session:
// exactly one completion event, one session count increment, ticker gone.
func (reg *Registry) tick(r *Room, kind string, stop chan struct{}) (done bool) {
	r.mu.Lock()
	t, ok := r.timers[kind]
	if !ok || t.stop != stop || !t.IsRunning {
		r.mu.Unlock()
		return true
	}
	t.RemainingSeconds--
	var completed bool
	if t.RemainingSeconds <= 0 {
		t.RemainingSeconds = 0
		t.IsRunning = false
		t.CompletedSessions++
		t.stop = nil
		completed = true
	}
	state := t.TimerState
	conns := r.conns()
	r.mu.Unlock()

	if completed {
		broadcast(conns, TimerEventName(kind, "Complete"), state)
		return true
	}
	broadcast(conns, TimerEventName(kind, "Tick"), TickPayload{
		RemainingSeconds: state.RemainingSeconds,
		IsRunning:        state.IsRunning,
	})
	return false
}
