package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/trackwise/core"
	"github.com/trezcool/trackwise/core/study"
)

type studyApi struct {
	svc *study.Service
}

func registerStudyAPI(g *echo.Group, svc *study.Service, auth echo.MiddlewareFunc) {
	api := studyApi{svc: svc}

	tasks := g.Group("/tasks", auth)
	tasks.GET("", listHandler(svc.Tasks))
	tasks.POST("", api.createTask)
	tasks.GET("/:id", getHandler(svc.Tasks))
	updateTask := updateHandler[study.Task, study.TaskPatch, *study.TaskPatch](svc.Tasks)
	tasks.PUT("/:id", updateTask)
	tasks.PATCH("/:id", updateTask)
	tasks.DELETE("/:id", deleteHandler(svc.Tasks))

	notes := g.Group("/notes", auth)
	notes.GET("", listHandler(svc.Notes))
	notes.POST("", api.createNote)
	notes.GET("/:id", getHandler(svc.Notes))
	updateNote := updateHandler[study.Note, study.NotePatch, *study.NotePatch](svc.Notes)
	notes.PUT("/:id", updateNote)
	notes.PATCH("/:id", updateNote)
	notes.DELETE("/:id", deleteHandler(svc.Notes))

	schedule := g.Group("/schedule", auth)
	schedule.GET("", listHandler(svc.Reminders))
	schedule.POST("", api.createReminder)
	schedule.GET("/:id", getHandler(svc.Reminders))
	updateReminder := updateHandler[study.Reminder, study.ReminderPatch, *study.ReminderPatch](svc.Reminders)
	schedule.PUT("/:id", updateReminder)
	schedule.PATCH("/:id", updateReminder)
	schedule.DELETE("/:id", deleteHandler(svc.Reminders))

	progress := g.Group("/progress", auth)
	progress.GET("", listHandler(svc.Progress))
	progress.POST("", api.logProgress)
	progress.GET("/summary", api.progressSummary)
	progress.GET("/daily", api.dailyProgress)
	progress.GET("/:id", getHandler(svc.Progress))
	progress.DELETE("/:id", deleteHandler(svc.Progress))
}

// bindFilter reads the optional list constraints off the query string. The
// owner constraint is never read from the request; List stamps it from the
// authenticated identity.
func bindFilter(ctx echo.Context) (study.Filter, error) {
	var filter study.Filter
	if v := ctx.QueryParam("completed"); v != "" {
		completed, err := strconv.ParseBool(v)
		if err != nil {
			return filter, core.NewValidationError(nil, core.FieldError{Field: "completed", Error: "must be a boolean"})
		}
		filter.Completed = &completed
	}
	for param, dst := range map[string]*time.Time{"from": &filter.DateFrom, "to": &filter.DateTo} {
		v := ctx.QueryParam(param)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			if t, err = time.Parse("2006-01-02", v); err != nil {
				return filter, core.NewValidationError(nil, core.FieldError{Field: param, Error: "must be an RFC 3339 timestamp or a YYYY-MM-DD date"})
			}
		}
		*dst = t.UTC()
	}
	return filter, nil
}

func listHandler[T study.Record, P any](coll *study.Collection[T, P]) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		filter, err := bindFilter(ctx)
		if err != nil {
			return err
		}
		recs, err := coll.List(ctx.Request().Context(), usr.ID, filter)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, recs)
	}
}

func getHandler[T study.Record, P any](coll *study.Collection[T, P]) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		rec, err := coll.Get(ctx.Request().Context(), usr.ID, ctx.Param("id"))
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, rec)
	}
}

func updateHandler[T study.Record, P any, PP interface {
	*P
	Validate(study.Validator) error
}](coll *study.Collection[T, P]) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		var patch P
		if err = ctx.Bind(&patch); err != nil {
			return core.NewValidationError(errors.New("invalid request body"))
		}
		if err = PP(&patch).Validate(validate); err != nil {
			return err
		}
		rec, err := coll.Update(ctx.Request().Context(), usr.ID, ctx.Param("id"), patch)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, rec)
	}
}

func deleteHandler[T study.Record, P any](coll *study.Collection[T, P]) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		if err = coll.Delete(ctx.Request().Context(), usr.ID, ctx.Param("id")); err != nil {
			return err
		}
		return ctx.NoContent(http.StatusNoContent)
	}
}

func (api *studyApi) createTask(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var nt study.NewTask
	if err = ctx.Bind(&nt); err != nil {
		return core.NewValidationError(errors.New("invalid request body"))
	}
	if err = nt.Validate(validate); err != nil {
		return err
	}
	task, err := api.svc.CreateTask(ctx.Request().Context(), usr.ID, nt)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, task)
}

func (api *studyApi) createNote(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var nn study.NewNote
	if err = ctx.Bind(&nn); err != nil {
		return core.NewValidationError(errors.New("invalid request body"))
	}
	if err = nn.Validate(validate); err != nil {
		return err
	}
	note, err := api.svc.CreateNote(ctx.Request().Context(), usr.ID, nn)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, note)
}

func (api *studyApi) createReminder(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var nr study.NewReminder
	if err = ctx.Bind(&nr); err != nil {
		return core.NewValidationError(errors.New("invalid request body"))
	}
	if err = nr.Validate(validate); err != nil {
		return err
	}
	reminder, err := api.svc.CreateReminder(ctx.Request().Context(), usr.ID, nr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, reminder)
}

func (api *studyApi) logProgress(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var np study.NewProgressEntry
	if err = ctx.Bind(&np); err != nil {
		return core.NewValidationError(errors.New("invalid request body"))
	}
	if err = np.Validate(validate); err != nil {
		return err
	}
	entry, err := api.svc.LogProgress(ctx.Request().Context(), usr.ID, np)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, entry)
}

// bindDays reads the trailing-window length, defaulting to a week.
func bindDays(ctx echo.Context) (int, error) {
	v := ctx.QueryParam("days")
	if v == "" {
		return 7, nil
	}
	days, err := strconv.Atoi(v)
	if err != nil {
		return 0, study.ErrInvalidDays
	}
	return days, nil
}

func (api *studyApi) progressSummary(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	days, err := bindDays(ctx)
	if err != nil {
		return err
	}
	summary, err := api.svc.ProgressSummary(ctx.Request().Context(), usr.ID, days)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *studyApi) dailyProgress(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	days, err := bindDays(ctx)
	if err != nil {
		return err
	}
	daily, err := api.svc.DailyProgress(ctx.Request().Context(), usr.ID, days)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, daily)
}
