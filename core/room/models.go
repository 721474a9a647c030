package room

import (
	"encoding/json"
	"sync"
)

// Kind is set explicitly at room creation; access rules never re-derive it
// from the key once the room exists.
type Kind string

const (
	KindPersonal Kind = "personal"
	KindShared   Kind = "shared"
)

// Conn is the registry's view of one live realtime connection. Send must be
// safe for concurrent use; a failed send only affects that connection.
type Conn interface {
	ID() string
	Send(event string, data interface{}) error
}

// Member is one connection's membership in one room.
type Member struct {
	ConnID     string `json:"-"`
	IdentityID string `json:"id"`
	Name       string `json:"name"`
	IsHost     bool   `json:"is_host"`

	conn         Conn
	onWhiteboard bool
}

// SharedTask is an item on a room's collaborative to-do list.
type SharedTask struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// TimerState is the shared countdown state for one timer kind.
// RemainingSeconds only decreases while IsRunning; hitting zero flips
// IsRunning off and bumps CompletedSessions exactly once.
type TimerState struct {
	IsRunning            bool `json:"isRunning"`
	RemainingSeconds     int  `json:"remainingSeconds"`
	TotalDurationSeconds int  `json:"totalDurationSeconds"`
	CompletedSessions    int  `json:"completedSessionCount"`
}

// timer couples a TimerState with its live ticker, if any. A nil stop
// channel is the "no active interval" state; there is never more than one
// live ticker per timer.
type timer struct {
	TimerState
	stop chan struct{}
}

// Room is the in-memory state of one live collaborative session. It exists
// only while it has members and is never persisted; the registry rebuilds a
// fresh Room for a key whose membership previously drained.
type Room struct {
	mu sync.Mutex

	Key               string
	Kind              Kind
	OwnerID           string // set for personal rooms
	Topic             string
	ParticipantsLimit int

	members    map[string]*Member // keyed by ConnID
	tasks      []SharedTask
	timers     map[string]*timer // keyed by timer kind
	whiteboard json.RawMessage   // latest full-canvas snapshot, nil = absent
}

// Timer kinds; they double as realtime event name prefixes
// (pomodoroTick, breakTick, ...).
const (
	TimerPomodoro = "pomodoro"
	TimerBreak    = "break"
)

const defaultDurationSeconds = 25 * 60

func newRoom(key string, kind Kind, ownerID, topic string, limit int) *Room {
	return &Room{
		Key:               key,
		Kind:              kind,
		OwnerID:           ownerID,
		Topic:             topic,
		ParticipantsLimit: limit,
		members:           make(map[string]*Member),
		timers: map[string]*timer{
			TimerPomodoro: {TimerState: TimerState{TotalDurationSeconds: defaultDurationSeconds}},
			TimerBreak:    {TimerState: TimerState{TotalDurationSeconds: 5 * 60}},
		},
	}
}

// requireMember gates room operations on membership: only a connection that
// joined the room may read or mutate its state. Callers must hold r.mu; a
// room destroyed between lookup and lock has no members left, so the check
// also rejects operations racing the room's teardown.
func (r *Room) requireMember(connID string) error {
	if _, ok := r.members[connID]; !ok {
		return ErrAccessDenied
	}
	return nil
}

// conns snapshots member connections for lock-free sends.
// Callers must hold r.mu.
func (r *Room) conns(excludeConnID ...string) []Conn {
	var excl string
	if len(excludeConnID) > 0 {
		excl = excludeConnID[0]
	}
	conns := make([]Conn, 0, len(r.members))
	for id, m := range r.members {
		if id == excl {
			continue
		}
		conns = append(conns, m.conn)
	}
	return conns
}

// whiteboardConns snapshots connections subscribed to the whiteboard
// sub-channel. Callers must hold r.mu.
func (r *Room) whiteboardConns(excludeConnID string) []Conn {
	conns := make([]Conn, 0, len(r.members))
	for id, m := range r.members {
		if id == excludeConnID || !m.onWhiteboard {
			continue
		}
		conns = append(conns, m.conn)
	}
	return conns
}

func (r *Room) memberList() []Member {
	members := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, *m)
	}
	return members
}

// Snapshot is the full current view of a room, sent to a joining connection
// so late joiners converge without replaying history.
type Snapshot struct {
	RoomKey    string          `json:"roomKey"`
	Kind       Kind            `json:"kind"`
	Topic      string          `json:"topic,omitempty"`
	Members    []Member        `json:"members"`
	Tasks      []SharedTask    `json:"tasks"`
	Pomodoro   TimerState      `json:"pomodoro"`
	Break      TimerState      `json:"break"`
	CanvasData json.RawMessage `json:"canvasState,omitempty"`
}

// snapshot builds a Snapshot. Callers must hold r.mu.
func (r *Room) snapshot() Snapshot {
	tasks := make([]SharedTask, len(r.tasks))
	copy(tasks, r.tasks)
	return Snapshot{
		RoomKey:    r.Key,
		Kind:       r.Kind,
		Topic:      r.Topic,
		Members:    r.memberList(),
		Tasks:      tasks,
		Pomodoro:   r.timers[TimerPomodoro].TimerState,
		Break:      r.timers[TimerBreak].TimerState,
		CanvasData: r.whiteboard,
	}
}
