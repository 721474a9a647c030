package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/trackwise/core"
	"github.com/trezcool/trackwise/core/room"
)

var errRoomNotFound = echo.NewHTTPError(http.StatusNotFound, "room not found")

type roomApi struct {
	registry *room.Registry
	bot      core.BotService
}

func registerRoomAPI(g *echo.Group, registry *room.Registry, bot core.BotService, auth echo.MiddlewareFunc) {
	api := roomApi{registry: registry, bot: bot}

	rg := g.Group("/rooms", auth)
	rg.POST("/create", api.create)
	rg.POST("/join", api.join)

	g.POST("/chatbot", api.chatbot, auth)
}

type newRoomRequest struct {
	Type  string `json:"type" validate:"required,oneof=personal shared"`
	Name  string `json:"name"`
	Topic string `json:"topic"`
	// ParticipantsLimit caps concurrent members of a shared room. An absent
	// field means the default; an explicit out-of-range value is rejected.
	ParticipantsLimit *int `json:"participantsLimit" validate:"omitempty,min=1,max=10"`
}

type roomResponse struct {
	RoomKey           string    `json:"roomKey"`
	Kind              room.Kind `json:"kind"`
	Topic             string    `json:"topic,omitempty"`
	ParticipantsLimit int       `json:"participantsLimit,omitempty"`
}

// create derives a room key and records its creation metadata. No live room
// exists until the first realtime join; creating is idempotent for personal
// rooms since their key is deterministic.
func (api *roomApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var req newRoomRequest
	if err = ctx.Bind(&req); err != nil {
		return core.NewValidationError(errors.New("invalid request body"))
	}
	req.Name = core.CleanString(req.Name)
	req.Topic = core.CleanString(req.Topic)
	if err = validate.Struct(&req); err != nil {
		return err
	}

	switch room.Kind(req.Type) {
	case room.KindPersonal:
		if req.Name == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "name", Error: "this field is required for personal rooms"})
		}
		key := room.PersonalRoomKey(usr.ID, req.Name)
		api.registry.Reserve(key, room.KindPersonal, usr.ID, req.Name, 1)
		return ctx.JSON(http.StatusCreated, roomResponse{RoomKey: key, Kind: room.KindPersonal, Topic: req.Name})

	default: // shared
		if req.Topic == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "topic", Error: "this field is required for shared rooms"})
		}
		limit := room.DefaultParticipantsLimit
		if req.ParticipantsLimit != nil {
			limit = *req.ParticipantsLimit
		}
		key := room.SharedRoomKey(req.Topic)
		api.registry.Reserve(key, room.KindShared, usr.ID, req.Topic, limit)
		return ctx.JSON(http.StatusCreated, roomResponse{
			RoomKey: key, Kind: room.KindShared, Topic: req.Topic, ParticipantsLimit: limit,
		})
	}
}

type joinRoomRequest struct {
	RoomKey string `json:"roomKey" validate:"required"`
}

// join checks a key ahead of the realtime connection so a client can surface
// "room not found" before opening a socket. Membership itself only changes
// over the realtime channel.
func (api *roomApi) join(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var req joinRoomRequest
	if err = ctx.Bind(&req); err != nil {
		return core.NewValidationError(errors.New("invalid request body"))
	}
	if err = validate.Struct(&req); err != nil {
		return err
	}

	if snap, ok := api.registry.Describe(req.RoomKey); ok {
		if err = room.Authorize(usr.ID, snap.Kind, roomOwner(snap.Kind, req.RoomKey)); err != nil {
			// another owner's personal room answers exactly like an absent
			// one; keys must not be probeable
			return errRoomNotFound
		}
		return ctx.JSON(http.StatusOK, roomResponse{
			RoomKey: snap.RoomKey, Kind: snap.Kind, Topic: snap.Topic,
		})
	}
	if kind, topic, limit, ok := api.registry.Reserved(req.RoomKey); ok {
		if err = room.Authorize(usr.ID, kind, roomOwner(kind, req.RoomKey)); err != nil {
			return errRoomNotFound
		}
		return ctx.JSON(http.StatusOK, roomResponse{
			RoomKey: req.RoomKey, Kind: kind, Topic: topic, ParticipantsLimit: limit,
		})
	}
	return errRoomNotFound
}

// roomOwner recovers the owner constraint for an access check against a key
// whose room struct is not at hand. Only personal keys embed an owner.
func roomOwner(kind room.Kind, key string) string {
	if kind != room.KindPersonal {
		return ""
	}
	_, ownerID := room.ParseKey(key)
	return ownerID
}

type chatbotRequest struct {
	Message string `json:"message" validate:"required"`
}

// chatbot proxies a prompt to the configured assistant backend. Upstream
// failures degrade to a canned reply instead of erroring the request.
func (api *roomApi) chatbot(ctx echo.Context) error {
	if _, err := getContextUser(ctx); err != nil {
		return err
	}

	var req chatbotRequest
	if err := ctx.Bind(&req); err != nil {
		return core.NewValidationError(errors.New("invalid request body"))
	}
	req.Message = core.CleanString(req.Message)
	if err := validate.Struct(&req); err != nil {
		return err
	}

	reply, err := api.bot.Reply(ctx.Request().Context(), req.Message)
	if err != nil {
		return errors.Wrap(err, "querying assistant backend")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"reply": reply})
}
