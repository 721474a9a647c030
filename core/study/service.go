package study

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/trackwise/core"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrInvalidID = errors.New("invalid record id")
)

type (
	// Selector addresses exactly one record of one owner. Repositories must
	// treat both fields as mandatory conjuncts; a record that matches the ID
	// but not the owner does not exist as far as the caller is concerned.
	Selector struct {
		ID      string
		OwnerID string
	}

	// Filter constrains a FindMany call. OwnerID is always set by the
	// service layer before the filter reaches a repository.
	Filter struct {
		OwnerID   string
		Completed *bool
		DateFrom  time.Time
		DateTo    time.Time
	}

	// Repository is the uniform per-entity store contract. Implementations
	// apply every Filter/Selector field as an AND conjunct and never return
	// records outside Filter.OwnerID.
	Repository[T Record, P any] interface {
		FindMany(ctx context.Context, filter Filter) ([]T, error)
		FindOne(ctx context.Context, sel Selector) (T, error)
		Insert(ctx context.Context, rec T) (T, error)
		UpdateOne(ctx context.Context, sel Selector, patch P) (T, error)
		DeleteOne(ctx context.Context, sel Selector) error
	}
)

// Collection wraps a Repository with owner scoping. All access goes through
// an explicit ownerID argument resolved from an authenticated identity; the
// collection re-verifies every record a repository hands back and fails the
// request on any cross-owner result instead of returning it.
type Collection[T Record, P any] struct {
	kind   string
	repo   Repository[T, P]
	logger core.Logger
}

func NewCollection[T Record, P any](kind string, repo Repository[T, P], logger core.Logger) *Collection[T, P] {
	return &Collection[T, P]{kind: kind, repo: repo, logger: logger}
}

func (c *Collection[T, P]) checkOwner(ownerID string, rec T) error {
	if rec.RecordOwner() == ownerID {
		return nil
	}
	err := &core.IsolationBreachError{
		Kind:        c.kind,
		RecordID:    rec.RecordID(),
		WantOwnerID: ownerID,
		GotOwnerID:  rec.RecordOwner(),
	}
	c.logger.Error("owner scoping violated", err)
	return err
}

func (c *Collection[T, P]) selector(ownerID, id string) (Selector, error) {
	if ownerID == "" {
		// unreachable behind the auth middleware
		panic("study: collection access without a resolved identity")
	}
	if _, err := uuid.Parse(id); err != nil {
		return Selector{}, ErrInvalidID
	}
	return Selector{ID: id, OwnerID: ownerID}, nil
}

func (c *Collection[T, P]) List(ctx context.Context, ownerID string, filter Filter) ([]T, error) {
	if ownerID == "" {
		panic("study: collection access without a resolved identity")
	}
	filter.OwnerID = ownerID
	recs, err := c.repo.FindMany(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "finding %ss", c.kind)
	}
	for _, rec := range recs {
		if err = c.checkOwner(ownerID, rec); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

func (c *Collection[T, P]) Get(ctx context.Context, ownerID, id string) (T, error) {
	var zero T
	sel, err := c.selector(ownerID, id)
	if err != nil {
		return zero, err
	}
	rec, err := c.repo.FindOne(ctx, sel)
	if err != nil {
		return zero, err
	}
	if err = c.checkOwner(ownerID, rec); err != nil {
		return zero, err
	}
	return rec, nil
}

func (c *Collection[T, P]) insert(ctx context.Context, ownerID string, rec T) (T, error) {
	var zero T
	if err := c.checkOwner(ownerID, rec); err != nil {
		return zero, err
	}
	return c.repo.Insert(ctx, rec)
}

func (c *Collection[T, P]) Update(ctx context.Context, ownerID, id string, patch P) (T, error) {
	var zero T
	sel, err := c.selector(ownerID, id)
	if err != nil {
		return zero, err
	}
	rec, err := c.repo.UpdateOne(ctx, sel, patch)
	if err != nil {
		return zero, err
	}
	if err = c.checkOwner(ownerID, rec); err != nil {
		return zero, err
	}
	return rec, nil
}

func (c *Collection[T, P]) Delete(ctx context.Context, ownerID, id string) error {
	sel, err := c.selector(ownerID, id)
	if err != nil {
		return err
	}
	return c.repo.DeleteOne(ctx, sel)
}

type Service struct {
	Tasks     *Collection[Task, TaskPatch]
	Notes     *Collection[Note, NotePatch]
	Reminders *Collection[Reminder, ReminderPatch]
	Progress  *Collection[ProgressEntry, ProgressPatch]
}

func NewService(
	tasks Repository[Task, TaskPatch],
	notes Repository[Note, NotePatch],
	reminders Repository[Reminder, ReminderPatch],
	progress Repository[ProgressEntry, ProgressPatch],
	logger core.Logger,
) *Service {
	return &Service{
		Tasks:     NewCollection("task", tasks, logger),
		Notes:     NewCollection("note", notes, logger),
		Reminders: NewCollection("reminder", reminders, logger),
		Progress:  NewCollection("progress entry", progress, logger),
	}
}

func (svc *Service) CreateTask(ctx context.Context, ownerID string, nt NewTask) (Task, error) {
	now := time.Now().UTC()
	return svc.Tasks.insert(ctx, ownerID, Task{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       nt.Title,
		Description: nt.Description,
		DueDate:     nt.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) CreateNote(ctx context.Context, ownerID string, nn NewNote) (Note, error) {
	now := time.Now().UTC()
	return svc.Notes.insert(ctx, ownerID, Note{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     nn.Title,
		Content:   nn.Content,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) CreateReminder(ctx context.Context, ownerID string, nr NewReminder) (Reminder, error) {
	now := time.Now().UTC()
	return svc.Reminders.insert(ctx, ownerID, Reminder{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     nr.Title,
		DueAt:     nr.DueAt.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) LogProgress(ctx context.Context, ownerID string, np NewProgressEntry) (ProgressEntry, error) {
	now := time.Now().UTC()
	date := np.Date
	if date.IsZero() {
		date = now
	}
	return svc.Progress.insert(ctx, ownerID, ProgressEntry{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Subject:   np.Subject,
		Minutes:   np.Minutes,
		Date:      date.UTC().Truncate(24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// ProgressSummary aggregates the owner's entries over the trailing `days` window.
func (svc *Service) ProgressSummary(ctx context.Context, ownerID string, days int) (ProgressSummary, error) {
	entries, err := svc.progressWindow(ctx, ownerID, days)
	if err != nil {
		return ProgressSummary{}, err
	}
	summary := ProgressSummary{
		Days:      days,
		BySubject: make(map[string]int),
	}
	for _, e := range entries {
		summary.TotalMinutes += e.Minutes
		summary.Sessions++
		summary.BySubject[e.Subject] += e.Minutes
	}
	return summary, nil
}

// DailyProgress buckets the owner's entries per day over the trailing window,
// returning one bucket per day including empty ones, oldest first.
func (svc *Service) DailyProgress(ctx context.Context, ownerID string, days int) ([]DailyProgress, error) {
	entries, err := svc.progressWindow(ctx, ownerID, days)
	if err != nil {
		return nil, err
	}
	start := today().AddDate(0, 0, -(days - 1))
	buckets := make([]DailyProgress, days)
	for i := range buckets {
		buckets[i].Date = start.AddDate(0, 0, i)
	}
	for _, e := range entries {
		if i := int(e.Date.Sub(start).Hours() / 24); i >= 0 && i < days {
			buckets[i].Minutes += e.Minutes
		}
	}
	return buckets, nil
}

func (svc *Service) progressWindow(ctx context.Context, ownerID string, days int) ([]ProgressEntry, error) {
	if days < 1 {
		return nil, ErrInvalidDays
	}
	return svc.Progress.List(ctx, ownerID, Filter{
		DateFrom: today().AddDate(0, 0, -(days - 1)),
	})
}

var ErrInvalidDays = errors.New("days must be a positive number")

func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}
