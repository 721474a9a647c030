package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackwise/core/room"
)

type wsEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + token
	sock, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sock.Close() })
	return sock
}

func sendEvent(t *testing.T, sock *websocket.Conn, event string, data interface{}) {
	t.Helper()

	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, sock.WriteJSON(wsEnvelope{Event: event, Data: payload}))
}

// readEvent reads the next envelope, failing the test on a stalled socket.
func readEvent(t *testing.T, sock *websocket.Conn) wsEnvelope {
	t.Helper()

	require.NoError(t, sock.SetReadDeadline(time.Now().Add(3*time.Second)))
	var env wsEnvelope
	require.NoError(t, sock.ReadJSON(&env))
	return env
}

func expectEvent(t *testing.T, sock *websocket.Conn, event string, dst interface{}) {
	t.Helper()

	env := readEvent(t, sock)
	require.Equal(t, event, env.Event)
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
}

func Test_gateway_authRequired(t *testing.T) {
	srv := httptest.NewServer(app)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"

	_, res, err := websocket.DefaultDialer.Dial(url, nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	_, res, err = websocket.DefaultDialer.Dial(url+"?token=not-a-token", nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func Test_gateway_roomSession(t *testing.T) {
	srv := httptest.NewServer(app)
	defer srv.Close()

	host := createUser(t, "wshost")
	guest := createUser(t, "wsguest")
	key := room.SharedRoomKey("Algorithms")
	registry.Reserve(key, room.KindShared, host.ID, "Algorithms", 5)

	hostSock := dialWS(t, srv, getToken(t, host))
	sendEvent(t, hostSock, "joinRoom", map[string]string{"roomKey": key})
	var snap room.Snapshot
	expectEvent(t, hostSock, room.EvtRoomJoined, &snap)
	assert.Equal(t, key, snap.RoomKey)
	assert.Equal(t, "Algorithms", snap.Topic)
	require.Len(t, snap.Members, 1)
	assert.True(t, snap.Members[0].IsHost)
	assert.Equal(t, 25*60, snap.Pomodoro.TotalDurationSeconds)

	guestSock := dialWS(t, srv, getToken(t, guest))
	sendEvent(t, guestSock, "joinRoom", map[string]string{"roomKey": key})
	expectEvent(t, guestSock, room.EvtRoomJoined, &snap)
	assert.Len(t, snap.Members, 2)

	var joined room.Member
	expectEvent(t, hostSock, room.EvtUserJoined, &joined)
	assert.Equal(t, guest.Name, joined.Name)
	assert.False(t, joined.IsHost)

	// shared task list: both members see the change
	sendEvent(t, hostSock, "addTask", map[string]string{"roomKey": key, "text": "review graphs"})
	var task room.SharedTask
	expectEvent(t, hostSock, room.EvtTaskAdded, &task)
	assert.Equal(t, "review graphs", task.Text)
	var tasks []room.SharedTask
	expectEvent(t, hostSock, room.EvtTasksUpdated, &tasks)
	require.Len(t, tasks, 1)
	expectEvent(t, guestSock, room.EvtTaskAdded, nil)
	expectEvent(t, guestSock, room.EvtTasksUpdated, nil)

	// chat identity comes from the membership, not the payload
	sendEvent(t, guestSock, "sendMessage", map[string]string{"roomKey": key, "text": "  hello  "})
	var msg room.ChatMessage
	expectEvent(t, hostSock, room.EvtNewMessage, &msg)
	assert.Equal(t, guest.Name, msg.Sender)
	assert.Equal(t, "hello", msg.Text)
	expectEvent(t, guestSock, room.EvtNewMessage, nil)

	// a failing event answers only the sender, on a scoped error event
	sendEvent(t, guestSock, "teleport", map[string]string{"roomKey": key})
	var wsErr struct {
		Event string `json:"event"`
		Error string `json:"error"`
	}
	expectEvent(t, guestSock, "error", &wsErr)
	assert.Equal(t, "teleport", wsErr.Event)
	assert.Contains(t, wsErr.Error, "unknown event")

	// dropping the transport reaps membership in the room
	require.NoError(t, guestSock.Close())
	var left room.Member
	expectEvent(t, hostSock, room.EvtUserLeft, &left)
	assert.Equal(t, guest.Name, left.Name)
}

func Test_gateway_personalRoomAccess(t *testing.T) {
	srv := httptest.NewServer(app)
	defer srv.Close()

	owner := createUser(t, "wsowner")
	intruder := createUser(t, "wsintruder")
	key := room.PersonalRoomKey(owner.ID, "Focus Cave")
	registry.Reserve(key, room.KindPersonal, owner.ID, "Focus Cave", 1)

	ownerSock := dialWS(t, srv, getToken(t, owner))
	sendEvent(t, ownerSock, "joinRoom", map[string]string{"roomKey": key})
	var snap room.Snapshot
	expectEvent(t, ownerSock, room.EvtRoomJoined, &snap)
	assert.Equal(t, room.KindPersonal, snap.Kind)

	sock := dialWS(t, srv, getToken(t, intruder))
	sendEvent(t, sock, "joinRoom", map[string]string{"roomKey": key})
	var wsErr struct {
		Event string `json:"event"`
		Error string `json:"error"`
	}
	expectEvent(t, sock, "error", &wsErr)
	assert.Equal(t, "joinRoom", wsErr.Event)

	// the derivable key without membership grants no access to the live room
	sendEvent(t, sock, "addTask", map[string]string{"roomKey": key, "text": "injected"})
	expectEvent(t, sock, "error", &wsErr)
	assert.Equal(t, "addTask", wsErr.Event)
	sendEvent(t, sock, "startPomodoro", map[string]interface{}{"roomKey": key, "durationSeconds": 9999})
	expectEvent(t, sock, "error", &wsErr)
	assert.Equal(t, "startPomodoro", wsErr.Event)
	sendEvent(t, sock, "clearCanvas", map[string]string{"roomKey": key})
	expectEvent(t, sock, "error", &wsErr)
	assert.Equal(t, "clearCanvas", wsErr.Event)

	// the owner's room state is untouched by the rejected events
	sendEvent(t, ownerSock, "addTask", map[string]string{"roomKey": key, "text": "mine"})
	var task room.SharedTask
	expectEvent(t, ownerSock, room.EvtTaskAdded, &task)
	assert.Equal(t, "mine", task.Text)
	var tasks []room.SharedTask
	expectEvent(t, ownerSock, room.EvtTasksUpdated, &tasks)
	require.Len(t, tasks, 1)

	sendEvent(t, ownerSock, "pomodoroState", map[string]string{"roomKey": key})
	var pomo room.TimerState
	expectEvent(t, ownerSock, "pomodoroState", &pomo)
	assert.False(t, pomo.IsRunning, "the rejected start must not leave a running timer")
}
