package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/iliyamo/task-manager/internal/model"
	"github.com/iliyamo/task-manager/internal/query"
)

const taskColumns = "id, user_id, name, description, priority, status, due_date, category, is_public, attachment_path, created_at, updated_at"

// TaskRepo reads and writes the `tasks` table. Mutations are keyed on both
// the task id and the owner id, so a row that changed hands between the
// ownership check and the write is never touched.
type TaskRepo struct{ db *sql.DB }

func NewTaskRepo(db *sql.DB) *TaskRepo { return &TaskRepo{db: db} }

// Create inserts the task and fills in its ID and timestamps.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (user_id, name, description, priority, status, due_date, category, is_public, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.OwnerID, t.Name, t.Description, t.Priority, t.Status, utcPtr(t.DueDate), t.Category, t.IsPublic, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return pkgerrors.Wrap(err, "insert task")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return pkgerrors.Wrap(err, "task last insert id")
	}
	t.ID = uint64(id)
	return nil
}

// GetByID fetches a task regardless of owner, or ErrNotFound.
func (r *TaskRepo) GetByID(ctx context.Context, id uint64) (model.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, ErrNotFound
	}
	if err != nil {
		return model.Task{}, pkgerrors.Wrap(err, "select task")
	}
	return t, nil
}

// Update writes the editable fields of t. The owner id is part of the
// match and is never written.
func (r *TaskRepo) Update(ctx context.Context, t *model.Task) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET name = ?, description = ?, priority = ?, status = ?, due_date = ?, category = ?,
		 is_public = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		t.Name, t.Description, t.Priority, t.Status, utcPtr(t.DueDate), t.Category, t.IsPublic, t.UpdatedAt,
		t.ID, t.OwnerID)
	if err != nil {
		return pkgerrors.Wrap(err, "update task")
	}
	return requireAffected(res)
}

// SetStatus sets the status of a task owned by ownerID.
func (r *TaskRepo) SetStatus(ctx context.Context, id, ownerID uint64, status string) error {
	return r.setColumn(ctx, "status", status, id, ownerID)
}

// SetPublic sets the visibility of a task owned by ownerID.
func (r *TaskRepo) SetPublic(ctx context.Context, id, ownerID uint64, public bool) error {
	return r.setColumn(ctx, "is_public", public, id, ownerID)
}

// SetAttachment records the stored attachment key of a task owned by ownerID.
func (r *TaskRepo) SetAttachment(ctx context.Context, id, ownerID uint64, path string) error {
	return r.setColumn(ctx, "attachment_path", path, id, ownerID)
}

// setColumn only ever receives one of the constant column names above.
func (r *TaskRepo) setColumn(ctx context.Context, column string, v any, id, ownerID uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE tasks SET "+column+" = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		v, time.Now().UTC(), id, ownerID)
	if err != nil {
		return pkgerrors.Wrapf(err, "update task %s", column)
	}
	return requireAffected(res)
}

// DeleteByIDAndOwner removes a task provided it belongs to ownerID. A
// missing task yields ErrNotFound, someone else's ErrForbidden. The check
// and the delete share one transaction.
func (r *TaskRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64, allow func(principalID, ownerID uint64) bool) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "begin tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var dbOwnerID uint64
	if err = tx.QueryRowContext(ctx, "SELECT user_id FROM tasks WHERE id = ?", id).Scan(&dbOwnerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return pkgerrors.Wrap(err, "select task owner")
	}
	if !allow(ownerID, dbOwnerID) {
		return ErrForbidden
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ? AND user_id = ?", id, dbOwnerID); err != nil {
		return pkgerrors.Wrap(err, "delete task")
	}
	return nil
}

// Count implements query.Source.
func (r *TaskRepo) Count(ctx context.Context, p query.Predicate) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks"+p.Where(), p.Args()...).Scan(&n); err != nil {
		return 0, pkgerrors.Wrap(err, "count tasks")
	}
	return n, nil
}

// Fetch implements query.Source.
func (r *TaskRepo) Fetch(ctx context.Context, p query.Predicate, w query.Window) ([]model.Task, error) {
	q := "SELECT " + taskColumns + " FROM tasks" + p.Where() + " ORDER BY " + query.Order + " LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, append(p.Args(), w.Limit, w.Offset)...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list tasks")
	}
	defer rows.Close()

	out := make([]model.Task, 0, w.Limit)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "scan task")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DueTask is a task due soon together with its owner's contact details.
type DueTask struct {
	model.Task
	OwnerName  string
	OwnerEmail string
}

// ListDueBetween returns the not-completed tasks of active accounts whose
// due date falls in [from, to), oldest due first.
func (r *TaskRepo) ListDueBetween(ctx context.Context, from, to time.Time) ([]DueTask, error) {
	const q = `SELECT t.id, t.user_id, t.name, t.description, t.priority, t.status, t.due_date, t.category,
	                  t.is_public, t.attachment_path, t.created_at, t.updated_at, u.name, u.email
	           FROM tasks t JOIN users u ON u.id = t.user_id
	           WHERE t.due_date >= ? AND t.due_date < ? AND u.is_active = ?
	           ORDER BY t.due_date, t.id`
	rows, err := r.db.QueryContext(ctx, q, from.UTC(), to.UTC(), true)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list due tasks")
	}
	defer rows.Close()

	var out []DueTask
	for rows.Next() {
		var d DueTask
		var due sql.NullTime
		var category, attachment sql.NullString
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Name, &d.Description, &d.Priority, &d.Status, &due, &category,
			&d.IsPublic, &attachment, &d.CreatedAt, &d.UpdatedAt, &d.OwnerName, &d.OwnerEmail); err != nil {
			return nil, pkgerrors.Wrap(err, "scan due task")
		}
		setNullable(&d.Task, due, category, attachment)
		if !d.Completed() {
			out = append(out, d)
		}
	}
	return out, rows.Err()
}

func scanTask(s rowScanner) (model.Task, error) {
	var t model.Task
	var due sql.NullTime
	var category, attachment sql.NullString
	err := s.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Description, &t.Priority, &t.Status, &due, &category,
		&t.IsPublic, &attachment, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return model.Task{}, err
	}
	setNullable(&t, due, category, attachment)
	return t, nil
}

func setNullable(t *model.Task, due sql.NullTime, category, attachment sql.NullString) {
	if due.Valid {
		d := due.Time.UTC()
		t.DueDate = &d
	}
	if category.Valid {
		t.Category = &category.String
	}
	if attachment.Valid {
		t.AttachmentPath = &attachment.String
	}
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
