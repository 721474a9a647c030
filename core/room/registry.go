package room

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/trackwise/core"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrTaskNotFound = errors.New("task not found")
	ErrUnknownTimer = errors.New("unknown timer")
	ErrTimerRunning = errors.New("timer is running")
	ErrShuttingDown = errors.New("registry is shutting down")
)

// Realtime event names. The inbound names are matched by the gateway; the
// outbound ones are what clients subscribe to.
const (
	EvtRoomJoined = "roomJoined"
	EvtUserJoined = "userJoined"
	EvtUserLeft   = "userLeft"

	EvtTaskAdded    = "taskAdded"
	EvtTaskEdited   = "taskEdited"
	EvtTaskDeleted  = "taskDeleted"
	EvtTaskToggled  = "taskToggled"
	EvtTasksUpdated = "tasksUpdated"

	EvtDurationUpdated = "durationUpdated"

	EvtDrawing     = "drawing"
	EvtCanvasState = "canvasState"
	EvtClearCanvas = "clearCanvas"

	EvtNewMessage = "newMessage"
)

const DefaultParticipantsLimit = 10

type (
	// reservation carries the metadata of a room created over REST until its
	// first member joins over the realtime channel.
	reservation struct {
		kind    Kind
		ownerID string
		topic   string
		limit   int
	}

	// Registry is the process-local authority over all live rooms. All room
	// state is owned here and mutated only through its methods; membership
	// changes hold the registry lock so an emptied room cannot be revived by
	// a racing join.
	Registry struct {
		mu           sync.Mutex
		logger       core.Logger
		rooms        map[string]*Room
		reservations map[string]reservation
		closed       bool
	}
)

func NewRegistry(logger core.Logger) *Registry {
	return &Registry{
		logger:       logger,
		rooms:        make(map[string]*Room),
		reservations: make(map[string]reservation),
	}
}

// Reserve records creation metadata for a key ahead of its first join.
// Reservations hold no live state and are consumed by the first join.
func (reg *Registry) Reserve(key string, kind Kind, ownerID, topic string, limit int) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, live := reg.rooms[key]; live {
		return
	}
	if limit < 1 || limit > DefaultParticipantsLimit {
		limit = DefaultParticipantsLimit
	}
	reg.reservations[key] = reservation{kind: kind, ownerID: ownerID, topic: topic, limit: limit}
}

// Describe returns the live snapshot of a room, if it has members.
func (reg *Registry) Describe(key string) (Snapshot, bool) {
	reg.mu.Lock()
	r, ok := reg.rooms[key]
	reg.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(), true
}

// Reserved reports whether a key has a pending reservation and its metadata.
func (reg *Registry) Reserved(key string) (Kind, string, int, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	res, ok := reg.reservations[key]
	return res.kind, res.topic, res.limit, ok
}

// Join adds a connection to the room at key, creating the room on first
// join. The caller's identity is checked against the room's access policy
// before any state changes. The returned snapshot is the joiner's complete
// view of the room.
func (reg *Registry) Join(conn Conn, identityID, name, key string) (Snapshot, error) {
	reg.mu.Lock()
	if reg.closed {
		reg.mu.Unlock()
		return Snapshot{}, ErrShuttingDown
	}

	r, live := reg.rooms[key]
	if !live {
		kind, ownerID := ParseKey(key)
		topic := ""
		limit := DefaultParticipantsLimit
		if res, ok := reg.reservations[key]; ok {
			kind, ownerID, topic, limit = res.kind, res.ownerID, res.topic, res.limit
		}
		if err := Authorize(identityID, kind, ownerID); err != nil {
			reg.mu.Unlock()
			return Snapshot{}, err
		}
		r = newRoom(key, kind, ownerID, topic, limit)
		reg.rooms[key] = r
		delete(reg.reservations, key)
	} else if err := Authorize(identityID, r.Kind, r.OwnerID); err != nil {
		reg.mu.Unlock()
		return Snapshot{}, err
	}

	r.mu.Lock()
	if _, ok := r.members[conn.ID()]; ok {
		// re-join of a live connection converges on the current view
		snap := r.snapshot()
		r.mu.Unlock()
		reg.mu.Unlock()
		return snap, nil
	}
	if len(r.members) >= r.ParticipantsLimit {
		r.mu.Unlock()
		reg.mu.Unlock()
		return Snapshot{}, ErrRoomFull
	}
	member := &Member{
		ConnID:     conn.ID(),
		IdentityID: identityID,
		Name:       name,
		IsHost:     len(r.members) == 0,
		conn:       conn,
	}
	r.members[conn.ID()] = member
	snap := r.snapshot()
	others := r.conns(conn.ID())
	joined := *member
	r.mu.Unlock()
	reg.mu.Unlock()

	broadcast(others, EvtUserJoined, joined)
	return snap, nil
}

// Leave removes the connection's membership from the room at key.
func (reg *Registry) Leave(connID, key string) {
	reg.mu.Lock()
	r, ok := reg.rooms[key]
	if !ok {
		reg.mu.Unlock()
		return
	}
	left, remaining := reg.removeMember(r, connID)
	reg.mu.Unlock()

	if left != nil {
		broadcast(remaining, EvtUserLeft, *left)
	}
}

// Disconnect removes the connection from every room it had joined. The
// transport close path is the only membership reaper; there is no timer
// sweeping stale members.
func (reg *Registry) Disconnect(connID string) {
	reg.mu.Lock()
	type departure struct {
		member    Member
		remaining []Conn
	}
	var departures []departure
	for _, r := range reg.rooms {
		if left, remaining := reg.removeMember(r, connID); left != nil {
			departures = append(departures, departure{member: *left, remaining: remaining})
		}
	}
	reg.mu.Unlock()

	for _, d := range departures {
		broadcast(d.remaining, EvtUserLeft, d.member)
	}
}

// removeMember drops connID from r, destroying the room when its membership
// drains: both tickers are cancelled exactly once and the whiteboard
// snapshot goes with the room. Callers must hold reg.mu.
func (reg *Registry) removeMember(r *Room, connID string) (*Member, []Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[connID]
	if !ok {
		return nil, nil
	}
	delete(r.members, connID)

	if len(r.members) == 0 {
		for _, t := range r.timers {
			t.cancel()
		}
		r.whiteboard = nil
		delete(reg.rooms, r.Key)
		return m, nil
	}
	return m, r.conns()
}

// Shutdown destroys every room and cancels every live ticker.
func (reg *Registry) Shutdown() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.closed = true
	for key, r := range reg.rooms {
		r.mu.Lock()
		for _, t := range r.timers {
			t.cancel()
		}
		r.members = make(map[string]*Member)
		r.mu.Unlock()
		delete(reg.rooms, key)
	}
}

// room looks a live room up. Every operation on the result re-checks the
// caller's membership under the room lock; the key alone grants nothing.
func (reg *Registry) room(key string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[key]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// ---- shared task list ----

func (reg *Registry) AddTask(key, connID, text string) (SharedTask, error) {
	r, err := reg.room(key)
	if err != nil {
		return SharedTask{}, err
	}
	task := SharedTask{ID: uuid.NewString(), Text: text}

	r.mu.Lock()
	if err = r.requireMember(connID); err != nil {
		r.mu.Unlock()
		return SharedTask{}, err
	}
	r.tasks = append(r.tasks, task)
	tasks := snapshotTasks(r.tasks)
	conns := r.conns()
	r.mu.Unlock()

	broadcast(conns, EvtTaskAdded, task)
	broadcast(conns, EvtTasksUpdated, tasks)
	return task, nil
}

func (reg *Registry) EditTask(key, connID, taskID, text string) error {
	return reg.mutateTask(key, connID, taskID, EvtTaskEdited, func(t *SharedTask) { t.Text = text })
}

func (reg *Registry) ToggleTask(key, connID, taskID string) error {
	return reg.mutateTask(key, connID, taskID, EvtTaskToggled, func(t *SharedTask) { t.Completed = !t.Completed })
}

func (reg *Registry) DeleteTask(key, connID, taskID string) error {
	r, err := reg.room(key)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if err = r.requireMember(connID); err != nil {
		r.mu.Unlock()
		return err
	}
	idx := -1
	for i := range r.tasks {
		if r.tasks[i].ID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return ErrTaskNotFound
	}
	deleted := r.tasks[idx]
	r.tasks = append(r.tasks[:idx], r.tasks[idx+1:]...)
	tasks := snapshotTasks(r.tasks)
	conns := r.conns()
	r.mu.Unlock()

	broadcast(conns, EvtTaskDeleted, deleted)
	broadcast(conns, EvtTasksUpdated, tasks)
	return nil
}

// mutateTask applies a last-writer-wins mutation to one task under the room
// lock and broadcasts the result.
func (reg *Registry) mutateTask(key, connID, taskID, event string, mutate func(*SharedTask)) error {
	r, err := reg.room(key)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if err = r.requireMember(connID); err != nil {
		r.mu.Unlock()
		return err
	}
	var mutated *SharedTask
	for i := range r.tasks {
		if r.tasks[i].ID == taskID {
			mutate(&r.tasks[i])
			cp := r.tasks[i]
			mutated = &cp
			break
		}
	}
	if mutated == nil {
		r.mu.Unlock()
		return ErrTaskNotFound
	}
	tasks := snapshotTasks(r.tasks)
	conns := r.conns()
	r.mu.Unlock()

	broadcast(conns, event, *mutated)
	broadcast(conns, EvtTasksUpdated, tasks)
	return nil
}

func snapshotTasks(tasks []SharedTask) []SharedTask {
	cp := make([]SharedTask, len(tasks))
	copy(cp, tasks)
	return cp
}

// ---- whiteboard ----

func (reg *Registry) JoinWhiteboard(key, connID string) error {
	r, err := reg.room(key)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if err = r.requireMember(connID); err != nil {
		r.mu.Unlock()
		return err
	}
	m := r.members[connID]
	m.onWhiteboard = true
	canvas := r.whiteboard
	conn := m.conn
	r.mu.Unlock()

	if canvas != nil {
		_ = conn.Send(EvtCanvasState, canvas)
	}
	return nil
}

func (reg *Registry) LeaveWhiteboard(key, connID string) {
	r, err := reg.room(key)
	if err != nil {
		return
	}
	r.mu.Lock()
	if m, ok := r.members[connID]; ok {
		m.onWhiteboard = false
	}
	r.mu.Unlock()
}

// RelayDrawing fans a stroke out to every other whiteboard subscriber.
// Strokes are not retained; only full-canvas snapshots are.
func (reg *Registry) RelayDrawing(key, fromConnID string, stroke json.RawMessage) error {
	r, err := reg.room(key)
	if err != nil {
		return err
	}
	r.mu.Lock()
	if err = r.requireMember(fromConnID); err != nil {
		r.mu.Unlock()
		return err
	}
	conns := r.whiteboardConns(fromConnID)
	r.mu.Unlock()

	broadcast(conns, EvtDrawing, stroke)
	return nil
}

// SetCanvas retains the latest full-canvas snapshot (last write wins) and
// relays it to the other whiteboard subscribers.
func (reg *Registry) SetCanvas(key, fromConnID string, canvas json.RawMessage) error {
	r, err := reg.room(key)
	if err != nil {
		return err
	}
	r.mu.Lock()
	if err = r.requireMember(fromConnID); err != nil {
		r.mu.Unlock()
		return err
	}
	r.whiteboard = canvas
	conns := r.whiteboardConns(fromConnID)
	r.mu.Unlock()

	broadcast(conns, EvtCanvasState, canvas)
	return nil
}

func (reg *Registry) ClearCanvas(key, connID string) error {
	r, err := reg.room(key)
	if err != nil {
		return err
	}
	r.mu.Lock()
	if err = r.requireMember(connID); err != nil {
		r.mu.Unlock()
		return err
	}
	r.whiteboard = nil
	conns := r.conns()
	r.mu.Unlock()

	broadcast(conns, EvtClearCanvas, nil)
	return nil
}

// ---- chat ----

type ChatMessage struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// SendChat relays a message to every room member. The sender name comes
// from the connection's membership, never from the payload.
func (reg *Registry) SendChat(key, fromConnID, text string) error {
	r, err := reg.room(key)
	if err != nil {
		return err
	}
	r.mu.Lock()
	if err = r.requireMember(fromConnID); err != nil {
		r.mu.Unlock()
		return err
	}
	msg := ChatMessage{Sender: r.members[fromConnID].Name, Text: text, SentAt: time.Now().UTC()}
	conns := r.conns()
	r.mu.Unlock()

	broadcast(conns, EvtNewMessage, msg)
	return nil
}

// broadcast sends an event to each connection, tolerating per-connection
// failures: one closed socket must not take a tick or a room down.
func broadcast(conns []Conn, event string, data interface{}) {
	for _, c := range conns {
		_ = c.Send(event, data)
	}
}
