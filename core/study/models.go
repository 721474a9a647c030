package study

import (
	"time"

	"github.com/trezcool/trackwise/core"
)

// Record is any stored entity bound to a single owning identity.
// The owner field is stamped server-side at creation and is not part of
// any inbound payload.
type Record interface {
	RecordID() string
	RecordOwner() string
}

type Task struct {
	ID          string     `json:"id" db:"id"`
	OwnerID     string     `json:"-" db:"owner_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description,omitempty" db:"description"`
	Completed   bool       `json:"completed" db:"completed"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"` // UTC
}

func (t Task) RecordID() string    { return t.ID }
func (t Task) RecordOwner() string { return t.OwnerID }

type Note struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"-" db:"owner_id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (n Note) RecordID() string    { return n.ID }
func (n Note) RecordOwner() string { return n.OwnerID }

// Reminder is a scheduled item surfaced on the /schedule endpoints.
type Reminder struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"-" db:"owner_id"`
	Title     string    `json:"title" db:"title"`
	DueAt     time.Time `json:"due_at" db:"due_at"`
	Completed bool      `json:"completed" db:"completed"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (r Reminder) RecordID() string    { return r.ID }
func (r Reminder) RecordOwner() string { return r.OwnerID }

// ProgressEntry is one logged study session.
type ProgressEntry struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"-" db:"owner_id"`
	Subject   string    `json:"subject" db:"subject"`
	Minutes   int       `json:"minutes" db:"minutes"`
	Date      time.Time `json:"date" db:"date"` // day of the session, UTC midnight
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (p ProgressEntry) RecordID() string    { return p.ID }
func (p ProgressEntry) RecordOwner() string { return p.OwnerID }

// Inbound payloads. None of them carries an owner field: ownership is not
// client-assignable.

type NewTask struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

func (nt *NewTask) Validate(validate Validator) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	return validate.Struct(nt)
}

type TaskPatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Completed   *bool      `json:"completed"`
	DueDate     *time.Time `json:"due_date"`
}

func (tp *TaskPatch) Validate(validate Validator) error {
	if tp.Title != nil {
		title := core.CleanString(*tp.Title)
		if title == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field may not be blank"})
		}
		tp.Title = &title
	}
	return validate.Struct(tp)
}

type NewNote struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content"`
}

func (nn *NewNote) Validate(validate Validator) error {
	nn.Title = core.CleanString(nn.Title)
	return validate.Struct(nn)
}

type NotePatch struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (np *NotePatch) Validate(validate Validator) error {
	if np.Title != nil {
		title := core.CleanString(*np.Title)
		if title == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field may not be blank"})
		}
		np.Title = &title
	}
	return validate.Struct(np)
}

type NewReminder struct {
	Title string    `json:"title" validate:"required"`
	DueAt time.Time `json:"due_at" validate:"required"`
}

func (nr *NewReminder) Validate(validate Validator) error {
	nr.Title = core.CleanString(nr.Title)
	return validate.Struct(nr)
}

type ReminderPatch struct {
	Title     *string    `json:"title"`
	DueAt     *time.Time `json:"due_at"`
	Completed *bool      `json:"completed"`
}

func (rp *ReminderPatch) Validate(validate Validator) error {
	if rp.Title != nil {
		title := core.CleanString(*rp.Title)
		if title == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field may not be blank"})
		}
		rp.Title = &title
	}
	return validate.Struct(rp)
}

type NewProgressEntry struct {
	Subject string    `json:"subject" validate:"required"`
	Minutes int       `json:"minutes" validate:"required,gt=0"`
	Date    time.Time `json:"date"`
}

func (np *NewProgressEntry) Validate(validate Validator) error {
	np.Subject = core.CleanString(np.Subject)
	return validate.Struct(np)
}

// ProgressPatch exists to satisfy the uniform repository contract; progress
// entries are append-only in practice.
type ProgressPatch struct {
	Subject *string `json:"subject"`
	Minutes *int    `json:"minutes" validate:"omitempty,gt=0"`
}

func (pp *ProgressPatch) Validate(validate Validator) error { return validate.Struct(pp) }

// Validator is the subset of validator.Validate used by payload validation.
type Validator interface {
	Struct(s interface{}) error
}

// DailyProgress aggregates logged minutes for one day.
type DailyProgress struct {
	Date    time.Time `json:"date"`
	Minutes int       `json:"minutes"`
}

// ProgressSummary aggregates logged progress over a trailing window.
type ProgressSummary struct {
	Days         int            `json:"days"`
	TotalMinutes int            `json:"total_minutes"`
	Sessions     int            `json:"sessions"`
	BySubject    map[string]int `json:"by_subject"`
}
