package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/trackwise/core/study"
)

// scoped appends the owner conjunct plus any optional filter conjuncts.
// Every query built here carries owner_id; there is no unscoped path.
func scoped(filter study.Filter, dateColumn string) (string, []interface{}) {
	where := []string{"owner_id = ?"}
	args := []interface{}{filter.OwnerID}
	if filter.Completed != nil {
		where = append(where, "completed = ?")
		args = append(args, *filter.Completed)
	}
	if dateColumn != "" {
		if !filter.DateFrom.IsZero() {
			where = append(where, dateColumn+" >= ?")
			args = append(args, filter.DateFrom)
		}
		if !filter.DateTo.IsZero() {
			where = append(where, dateColumn+" <= ?")
			args = append(args, filter.DateTo)
		}
	}
	return strings.Join(where, " AND "), args
}

// patchSet renders a SET clause from column/value pairs, skipping nil values.
type patchSet struct {
	cols []string
	args []interface{}
}

func (ps *patchSet) add(col string, val interface{}) {
	ps.cols = append(ps.cols, fmt.Sprintf("%s = $%d", col, len(ps.args)+1))
	ps.args = append(ps.args, val)
}

func (ps *patchSet) clause() string { return strings.Join(ps.cols, ", ") }

// updateOne runs an owner-scoped single-row update and re-reads the row.
func updateOne(ctx context.Context, db *sqlx.DB, table string, ps *patchSet, sel study.Selector, dest interface{}) error {
	ps.add("updated_at", time.Now().UTC())
	n := len(ps.args)
	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = $%d AND owner_id = $%d", table, ps.clause(), n+1, n+2,
	)
	args := append(ps.args, sel.ID, sel.OwnerID)
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "updating %s", table)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return study.ErrNotFound
	}
	query = fmt.Sprintf("SELECT * FROM %s WHERE id = $1 AND owner_id = $2", table)
	return db.GetContext(ctx, dest, query, sel.ID, sel.OwnerID)
}

func deleteOne(ctx context.Context, db *sqlx.DB, table string, sel study.Selector) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND owner_id = $2", table)
	res, err := db.ExecContext(ctx, query, sel.ID, sel.OwnerID)
	if err != nil {
		return errors.Wrapf(err, "deleting from %s", table)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return study.ErrNotFound
	}
	return nil
}

func findOne(ctx context.Context, db *sqlx.DB, table string, sel study.Selector, dest interface{}) error {
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = $1 AND owner_id = $2", table)
	if err := db.GetContext(ctx, dest, query, sel.ID, sel.OwnerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return study.ErrNotFound
		}
		return errors.Wrapf(err, "getting from %s", table)
	}
	return nil
}

func findMany(ctx context.Context, db *sqlx.DB, table, dateColumn, orderBy string, filter study.Filter, dest interface{}) error {
	where, args := scoped(filter, dateColumn)
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s ORDER BY %s", table, where, orderBy)
	if err := db.SelectContext(ctx, dest, db.Rebind(query), args...); err != nil {
		return errors.Wrapf(err, "querying %s", table)
	}
	return nil
}

// ---- tasks ----

type taskRepository struct {
	db *sqlx.DB
}

var _ study.Repository[study.Task, study.TaskPatch] = (*taskRepository)(nil)

func NewTaskRepository(db *sql.DB) *taskRepository {
	return &taskRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *taskRepository) FindMany(ctx context.Context, filter study.Filter) ([]study.Task, error) {
	var tasks []study.Task
	if err := findMany(ctx, repo.db, "task", "due_date", "created_at", filter, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (repo *taskRepository) FindOne(ctx context.Context, sel study.Selector) (study.Task, error) {
	var task study.Task
	if err := findOne(ctx, repo.db, "task", sel, &task); err != nil {
		return study.Task{}, err
	}
	return task, nil
}

func (repo *taskRepository) Insert(ctx context.Context, rec study.Task) (study.Task, error) {
	query := `
		INSERT INTO task (id, owner_id, title, description, completed, due_date, created_at, updated_at)
		VALUES (:id, :owner_id, :title, :description, :completed, :due_date, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, rec); err != nil {
		return study.Task{}, errors.Wrap(err, "inserting task")
	}
	return rec, nil
}

func (repo *taskRepository) UpdateOne(ctx context.Context, sel study.Selector, patch study.TaskPatch) (study.Task, error) {
	ps := new(patchSet)
	if patch.Title != nil {
		ps.add("title", *patch.Title)
	}
	if patch.Description != nil {
		ps.add("description", *patch.Description)
	}
	if patch.Completed != nil {
		ps.add("completed", *patch.Completed)
	}
	if patch.DueDate != nil {
		ps.add("due_date", *patch.DueDate)
	}
	var task study.Task
	if err := updateOne(ctx, repo.db, "task", ps, sel, &task); err != nil {
		return study.Task{}, err
	}
	return task, nil
}

func (repo *taskRepository) DeleteOne(ctx context.Context, sel study.Selector) error {
	return deleteOne(ctx, repo.db, "task", sel)
}

// ---- notes ----

type noteRepository struct {
	db *sqlx.DB
}

var _ study.Repository[study.Note, study.NotePatch] = (*noteRepository)(nil)

func NewNoteRepository(db *sql.DB) *noteRepository {
	return &noteRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *noteRepository) FindMany(ctx context.Context, filter study.Filter) ([]study.Note, error) {
	var notes []study.Note
	filter.Completed = nil // notes have no completed column
	if err := findMany(ctx, repo.db, "note", "", "created_at", filter, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (repo *noteRepository) FindOne(ctx context.Context, sel study.Selector) (study.Note, error) {
	var note study.Note
	if err := findOne(ctx, repo.db, "note", sel, &note); err != nil {
		return study.Note{}, err
	}
	return note, nil
}

func (repo *noteRepository) Insert(ctx context.Context, rec study.Note) (study.Note, error) {
	query := `
		INSERT INTO note (id, owner_id, title, content, created_at, updated_at)
		VALUES (:id, :owner_id, :title, :content, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, rec); err != nil {
		return study.Note{}, errors.Wrap(err, "inserting note")
	}
	return rec, nil
}

func (repo *noteRepository) UpdateOne(ctx context.Context, sel study.Selector, patch study.NotePatch) (study.Note, error) {
	ps := new(patchSet)
	if patch.Title != nil {
		ps.add("title", *patch.Title)
	}
	if patch.Content != nil {
		ps.add("content", *patch.Content)
	}
	var note study.Note
	if err := updateOne(ctx, repo.db, "note", ps, sel, &note); err != nil {
		return study.Note{}, err
	}
	return note, nil
}

func (repo *noteRepository) DeleteOne(ctx context.Context, sel study.Selector) error {
	return deleteOne(ctx, repo.db, "note", sel)
}

// ---- reminders ----

type reminderRepository struct {
	db *sqlx.DB
}

var _ study.Repository[study.Reminder, study.ReminderPatch] = (*reminderRepository)(nil)

func NewReminderRepository(db *sql.DB) *reminderRepository {
	return &reminderRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *reminderRepository) FindMany(ctx context.Context, filter study.Filter) ([]study.Reminder, error) {
	var reminders []study.Reminder
	if err := findMany(ctx, repo.db, "reminder", "due_at", "due_at", filter, &reminders); err != nil {
		return nil, err
	}
	return reminders, nil
}

func (repo *reminderRepository) FindOne(ctx context.Context, sel study.Selector) (study.Reminder, error) {
	var reminder study.Reminder
	if err := findOne(ctx, repo.db, "reminder", sel, &reminder); err != nil {
		return study.Reminder{}, err
	}
	return reminder, nil
}

func (repo *reminderRepository) Insert(ctx context.Context, rec study.Reminder) (study.Reminder, error) {
	query := `
		INSERT INTO reminder (id, owner_id, title, due_at, completed, created_at, updated_at)
		VALUES (:id, :owner_id, :title, :due_at, :completed, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, rec); err != nil {
		return study.Reminder{}, errors.Wrap(err, "inserting reminder")
	}
	return rec, nil
}

func (repo *reminderRepository) UpdateOne(ctx context.Context, sel study.Selector, patch study.ReminderPatch) (study.Reminder, error) {
	ps := new(patchSet)
	if patch.Title != nil {
		ps.add("title", *patch.Title)
	}
	if patch.DueAt != nil {
		ps.add("due_at", *patch.DueAt)
	}
	if patch.Completed != nil {
		ps.add("completed", *patch.Completed)
	}
	var reminder study.Reminder
	if err := updateOne(ctx, repo.db, "reminder", ps, sel, &reminder); err != nil {
		return study.Reminder{}, err
	}
	return reminder, nil
}

func (repo *reminderRepository) DeleteOne(ctx context.Context, sel study.Selector) error {
	return deleteOne(ctx, repo.db, "reminder", sel)
}

// ---- progress ----

type progressRepository struct {
	db *sqlx.DB
}

var _ study.Repository[study.ProgressEntry, study.ProgressPatch] = (*progressRepository)(nil)

func NewProgressRepository(db *sql.DB) *progressRepository {
	return &progressRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *progressRepository) FindMany(ctx context.Context, filter study.Filter) ([]study.ProgressEntry, error) {
	var entries []study.ProgressEntry
	filter.Completed = nil
	if err := findMany(ctx, repo.db, "progress_entry", "date", "date", filter, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (repo *progressRepository) FindOne(ctx context.Context, sel study.Selector) (study.ProgressEntry, error) {
	var entry study.ProgressEntry
	if err := findOne(ctx, repo.db, "progress_entry", sel, &entry); err != nil {
		return study.ProgressEntry{}, err
	}
	return entry, nil
}

func (repo *progressRepository) Insert(ctx context.Context, rec study.ProgressEntry) (study.ProgressEntry, error) {
	query := `
		INSERT INTO progress_entry (id, owner_id, subject, minutes, date, created_at, updated_at)
		VALUES (:id, :owner_id, :subject, :minutes, :date, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, rec); err != nil {
		return study.ProgressEntry{}, errors.Wrap(err, "inserting progress entry")
	}
	return rec, nil
}

func (repo *progressRepository) UpdateOne(ctx context.Context, sel study.Selector, patch study.ProgressPatch) (study.ProgressEntry, error) {
	ps := new(patchSet)
	if patch.Subject != nil {
		ps.add("subject", *patch.Subject)
	}
	if patch.Minutes != nil {
		ps.add("minutes", *patch.Minutes)
	}
	var entry study.ProgressEntry
	if err := updateOne(ctx, repo.db, "progress_entry", ps, sel, &entry); err != nil {
		return study.ProgressEntry{}, err
	}
	return entry, nil
}

func (repo *progressRepository) DeleteOne(ctx context.Context, sel study.Selector) error {
	return deleteOne(ctx, repo.db, "progress_entry", sel)
}
