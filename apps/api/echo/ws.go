package echoapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/trackwise/core"
	"github.com/trezcool/trackwise/core/room"
	"github.com/trezcool/trackwise/core/user"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 12,
	WriteBufferSize: 1 << 12,
	// the SPA is served from a different origin; tokens, not origins, gate
	// the socket
	CheckOrigin: func(r *http.Request) bool { return true },
}

// envelope is the wire format in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// wsConn adapts one websocket to room.Conn. gorilla allows a single
// concurrent writer; the mutex serializes sends from ticker goroutines,
// broadcasts and the handler itself.
type wsConn struct {
	id   string
	mu   sync.Mutex
	sock *websocket.Conn
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrapf(err, "marshalling %q payload", event)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.WriteJSON(envelope{Event: event, Data: payload})
}

func (c *wsConn) sendError(event string, err error) {
	_ = c.Send("error", echo.Map{"event": event, "error": err.Error()})
}

type gateway struct {
	svc      user.ServiceInterface
	registry *room.Registry
	logger   core.Logger
}

func registerGateway(g *echo.Group, svc user.ServiceInterface, registry *room.Registry, logger core.Logger) {
	gw := gateway{svc: svc, registry: registry, logger: logger}
	g.GET("/ws", gw.serve)
}

// serve authenticates the handshake, upgrades it and pumps events until the
// connection drops. Authentication is fail-closed: no identity, no upgrade.
// The connection's identity is fixed at handshake time; inbound payloads
// never name the acting user.
func (gw *gateway) serve(ctx echo.Context) error {
	tokenStr := ctx.QueryParam("token")
	if tokenStr == "" {
		var err error
		if tokenStr, err = extractToken(ctx); err != nil {
			return err
		}
	}
	claims, err := VerifyToken(tokenStr)
	if err != nil {
		return errUnauthorized
	}
	usr, err := gw.svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errUnauthorized
		}
		return errors.Wrap(err, "resolving socket identity")
	}

	sock, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading connection")
	}
	conn := &wsConn{id: uuid.NewString(), sock: sock}

	defer func() {
		// dropping the transport is the only thing that reaps membership
		gw.registry.Disconnect(conn.id)
		_ = sock.Close()
	}()

	for {
		var env envelope
		if err = sock.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				gw.logger.Debug("websocket closed unexpectedly", err)
			}
			return nil
		}
		gw.dispatch(conn, usr, env)
	}
}

// dispatch routes one inbound event. A failing event answers the sender with
// a scoped error and leaves the connection and all other room state alone.
func (gw *gateway) dispatch(conn *wsConn, usr user.User, env envelope) {
	if err := gw.handle(conn, usr, env); err != nil {
		conn.sendError(env.Event, err)
	}
}

type (
	roomRef struct {
		RoomKey string `json:"roomKey"`
	}
	createRoomPayload struct {
		RoomKey           string `json:"roomKey"`
		Topic             string `json:"topic"`
		ParticipantsLimit int    `json:"participantsLimit"`
	}
	taskPayload struct {
		RoomKey string `json:"roomKey"`
		TaskID  string `json:"taskId"`
		Text    string `json:"text"`
	}
	timerPayload struct {
		RoomKey         string `json:"roomKey"`
		Timer           string `json:"timer"`
		DurationSeconds int    `json:"durationSeconds"`
	}
	canvasPayload struct {
		RoomKey string          `json:"roomKey"`
		Data    json.RawMessage `json:"data"`
	}
	messagePayload struct {
		RoomKey string `json:"roomKey"`
		Text    string `json:"text"`
	}
)

func (gw *gateway) handle(conn *wsConn, usr user.User, env envelope) error {
	reg := gw.registry

	switch env.Event {
	case "createRoom":
		var p createRoomPayload
		if err := bindEvent(env, &p); err != nil {
			return err
		}
		kind, ownerID := room.ParseKey(p.RoomKey)
		if ownerID == "" {
			ownerID = usr.ID
		}
		reg.Reserve(p.RoomKey, kind, ownerID, core.CleanString(p.Topic), p.ParticipantsLimit)
		snap, err := reg.Join(conn, usr.ID, usr.Name, p.RoomKey)
		if err != nil {
			return err
		}
		return conn.Send(room.EvtRoomJoined, snap)

	case "joinRoom":
		var p roomRef
		if err := bindEvent(env, &p); err != nil {
			return err
		}
		snap, err := reg.Join(conn, usr.ID, usr.Name, p.RoomKey)
		if err != nil {
			return err
		}
		return conn.Send(room.EvtRoomJoined, snap)

	case "leaveRoom":
		var p roomRef
		if err := bindEvent(env, &p); err != nil {
			return err
		}
		reg.Leave(conn.id, p.RoomKey)
		return nil

	case "addTask":
		var p taskPayload
		if err := bindEvent(env, &p); err != nil {
			return err
		}
		_, err := reg.AddTask(p.RoomKey, conn.id, p.Text)
		return err

	case "editTask":
		var p taskPayload
		if err := bindEvent(env, &p); err != nil {
			return err
		}
		return reg.EditTask(p.RoomKey, conn.id, p.TaskID, p.Text)

	case "toggleTask":
		var p taskPayload
		if err := bindEvent(env, &p); err != nil {
			return err
		}
		return reg.ToggleTask(p.RoomKey, conn.id, p.TaskID)

	case "deleteTask":
		var p taskPayload
		if err := bindEvent(env, &p); err != nil {
			return err
		}
		return reg.DeleteTask(p.RoomKey, conn.id, p.TaskID)

	case "startPomodoro", "startBreak", "pausePomodoro", "pauseBreak", "resetPomodoro", "resetBreak":
		return gw.handleTimer(conn, env)

	case "changeDuration":
		var p timerPayload
		if err := bindEvent(env, &p); err != nil {
			return err
		}
		if p.DurationSeconds < 1 {
			return errors.New("durationSeconds must be positive")
		}
		_, err := reg.ChangeDuration(p.RoomKey, conn.id, p.Timer, p.DurationSeconds)
		return err

	case "pomodoroState", "breakState":
		var p roomRef
		if err := bindEvent(env, &p); err != nil {
			return err
		}
		pomodoro, brk, err := reg.TimerStates(p.RoomKey, conn.id)
		if err != nil {
			return err
		}
		state := pomodoro
		if env.Event == "breakState" {
			state = brk
		}
		return conn.Send(env.Event, state)

	case "join-whiteboard-room":
		var p roomRef
		if err := bindEvent(env, &p); err != nil {
			return err
		}
		return reg.JoinWhiteboard(p.RoomKey, conn.id)

	case "leave-whiteboard-room":
		var p roomRef
		if err := bindEvent(env, &p); err != nil {
			return err
		}
		reg.LeaveWhiteboard(p.RoomKey, conn.id)
		return nil

	case "drawing":
		var p canvasPayload
		if err := bindEvent(env, &p); err != nil {
			return err
		}
		return reg.RelayDrawing(p.RoomKey, conn.id, p.Data)

	case "canvasState":
		var p canvasPayload
		if err := bindEvent(env, &p); err != nil {
			return err
		}
		return reg.SetCanvas(p.RoomKey, conn.id, p.Data)

	case "clearCanvas":
		var p roomRef
		if err := bindEvent(env, &p); err != nil {
			return err
		}
		return reg.ClearCanvas(p.RoomKey, conn.id)

	case "sendMessage":
		var p messagePayload
		if err := bindEvent(env, &p); err != nil {
			return err
		}
		text := core.CleanString(p.Text)
		if text == "" {
			return errors.New("message text is required")
		}
		return reg.SendChat(p.RoomKey, conn.id, text)

	default:
		return errors.Errorf("unknown event %q", env.Event)
	}
}

func (gw *gateway) handleTimer(conn *wsConn, env envelope) error {
	var p timerPayload
	if err := bindEvent(env, &p); err != nil {
		return err
	}

	kind := room.TimerPomodoro
	switch env.Event {
	case "startBreak", "pauseBreak", "resetBreak":
		kind = room.TimerBreak
	}

	var err error
	switch env.Event {
	case "startPomodoro", "startBreak":
		_, err = gw.registry.StartTimer(p.RoomKey, conn.id, kind, p.DurationSeconds)
	case "pausePomodoro", "pauseBreak":
		_, err = gw.registry.PauseTimer(p.RoomKey, conn.id, kind)
	case "resetPomodoro", "resetBreak":
		_, err = gw.registry.ResetTimer(p.RoomKey, conn.id, kind)
	}
	return err
}

func bindEvent(env envelope, dst interface{}) error {
	if len(env.Data) == 0 {
		return errors.Errorf("missing %q payload", env.Event)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return errors.Errorf("invalid %q payload", env.Event)
	}
	return nil
}
