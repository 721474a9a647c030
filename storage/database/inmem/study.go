package inmemdb

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/trackwise/core/study"
)

// repository is an in-memory study.Repository keeping records in insertion
// order. matches/apply supply the entity-specific filter and patch rules.
type repository[T study.Record, P any] struct {
	mutex   sync.RWMutex
	records []T
	matches func(T, study.Filter) bool
	apply   func(T, P) T
}

func (repo *repository[T, P]) FindMany(_ context.Context, filter study.Filter) ([]T, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	recs := make([]T, 0, len(repo.records))
	for _, rec := range repo.records {
		if rec.RecordOwner() != filter.OwnerID {
			continue
		}
		if repo.matches != nil && !repo.matches(rec, filter) {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (repo *repository[T, P]) FindOne(_ context.Context, sel study.Selector) (T, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	if i := repo.index(sel); i >= 0 {
		return repo.records[i], nil
	}
	var zero T
	return zero, study.ErrNotFound
}

func (repo *repository[T, P]) Insert(_ context.Context, rec T) (T, error) {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()
	repo.records = append(repo.records, rec)
	return rec, nil
}

func (repo *repository[T, P]) UpdateOne(_ context.Context, sel study.Selector, patch P) (T, error) {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	if i := repo.index(sel); i >= 0 {
		repo.records[i] = repo.apply(repo.records[i], patch)
		return repo.records[i], nil
	}
	var zero T
	return zero, study.ErrNotFound
}

func (repo *repository[T, P]) DeleteOne(_ context.Context, sel study.Selector) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	if i := repo.index(sel); i >= 0 {
		repo.records = append(repo.records[:i], repo.records[i+1:]...)
		return nil
	}
	return study.ErrNotFound
}

// index resolves a selector to a position; both conjuncts must match.
// Callers must hold the mutex.
func (repo *repository[T, P]) index(sel study.Selector) int {
	for i, rec := range repo.records {
		if rec.RecordID() == sel.ID && rec.RecordOwner() == sel.OwnerID {
			return i
		}
	}
	return -1
}

func inWindow(t time.Time, filter study.Filter) bool {
	if !filter.DateFrom.IsZero() && t.Before(filter.DateFrom) {
		return false
	}
	if !filter.DateTo.IsZero() && t.After(filter.DateTo) {
		return false
	}
	return true
}

func NewTaskRepository() study.Repository[study.Task, study.TaskPatch] {
	return &repository[study.Task, study.TaskPatch]{
		matches: func(t study.Task, f study.Filter) bool {
			return f.Completed == nil || t.Completed == *f.Completed
		},
		apply: func(t study.Task, p study.TaskPatch) study.Task {
			if p.Title != nil {
				t.Title = *p.Title
			}
			if p.Description != nil {
				t.Description = *p.Description
			}
			if p.Completed != nil {
				t.Completed = *p.Completed
			}
			if p.DueDate != nil {
				t.DueDate = p.DueDate
			}
			t.UpdatedAt = time.Now().UTC()
			return t
		},
	}
}

func NewNoteRepository() study.Repository[study.Note, study.NotePatch] {
	return &repository[study.Note, study.NotePatch]{
		apply: func(n study.Note, p study.NotePatch) study.Note {
			if p.Title != nil {
				n.Title = *p.Title
			}
			if p.Content != nil {
				n.Content = *p.Content
			}
			n.UpdatedAt = time.Now().UTC()
			return n
		},
	}
}

func NewReminderRepository() study.Repository[study.Reminder, study.ReminderPatch] {
	return &repository[study.Reminder, study.ReminderPatch]{
		matches: func(r study.Reminder, f study.Filter) bool {
			if f.Completed != nil && r.Completed != *f.Completed {
				return false
			}
			return inWindow(r.DueAt, f)
		},
		apply: func(r study.Reminder, p study.ReminderPatch) study.Reminder {
			if p.Title != nil {
				r.Title = *p.Title
			}
			if p.DueAt != nil {
				r.DueAt = p.DueAt.UTC()
			}
			if p.Completed != nil {
				r.Completed = *p.Completed
			}
			r.UpdatedAt = time.Now().UTC()
			return r
		},
	}
}

func NewProgressRepository() study.Repository[study.ProgressEntry, study.ProgressPatch] {
	return &repository[study.ProgressEntry, study.ProgressPatch]{
		matches: func(e study.ProgressEntry, f study.Filter) bool {
			return inWindow(e.Date, f)
		},
		apply: func(e study.ProgressEntry, p study.ProgressPatch) study.ProgressEntry {
			if p.Subject != nil {
				e.Subject = *p.Subject
			}
			if p.Minutes != nil {
				e.Minutes = *p.Minutes
			}
			e.UpdatedAt = time.Now().UTC()
			return e
		},
	}
}
