package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/iliyamo/task-manager/internal/model"
	"github.com/iliyamo/task-manager/internal/query"
)

const accountColumns = "id, name, email, password_hash, is_active, avatar_path, created_at, updated_at"

// AccountRepo reads and writes the `users` table.
type AccountRepo struct{ db *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

// Create inserts the account and fills in its ID and timestamps. The email
// is trimmed but otherwise stored as given. A taken email yields ErrConflict.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	now := time.Now().UTC()
	a.Email = strings.TrimSpace(a.Email)
	a.CreatedAt, a.UpdatedAt = now, now

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?)",
		a.Name, a.Email, a.PasswordHash, a.Active, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return pkgerrors.Wrap(err, "insert user")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return pkgerrors.Wrap(err, "user last insert id")
	}
	a.ID = uint64(id)
	return nil
}

// GetByID fetches an account by id, or ErrNotFound.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return r.getOne(ctx, "SELECT "+accountColumns+" FROM users WHERE id = ? LIMIT 1", id)
}

// GetByEmail fetches an account by exact email, or ErrNotFound.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return r.getOne(ctx, "SELECT "+accountColumns+" FROM users WHERE email = ? LIMIT 1", strings.TrimSpace(email))
}

func (r *AccountRepo) getOne(ctx context.Context, q string, arg any) (model.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.Account{}, pkgerrors.Wrap(err, "select user")
	}
	return a, nil
}

// Update writes name, email and password hash. A taken email yields
// ErrConflict; a missing row yields ErrNotFound.
func (r *AccountRepo) Update(ctx context.Context, a *model.Account) error {
	a.Email = strings.TrimSpace(a.Email)
	a.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET name = ?, email = ?, password_hash = ?, updated_at = ? WHERE id = ?",
		a.Name, a.Email, a.PasswordHash, a.UpdatedAt, a.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return pkgerrors.Wrap(err, "update user")
	}
	return requireAffected(res)
}

// SetAvatar records the avatar key of an account, or ErrNotFound.
func (r *AccountRepo) SetAvatar(ctx context.Context, id uint64, key string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET avatar_path = ?, updated_at = ? WHERE id = ?",
		key, time.Now().UTC(), id)
	if err != nil {
		return pkgerrors.Wrap(err, "update user avatar")
	}
	return requireAffected(res)
}

// Delete removes the account and every task it owns in one transaction.
func (r *AccountRepo) Delete(ctx context.Context, id uint64) (err error) {
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

	if _, err = tx.ExecContext(ctx, "DELETE FROM tasks WHERE user_id = ?", id); err != nil {
		return pkgerrors.Wrap(err, "delete user tasks")
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return pkgerrors.Wrap(err, "delete user")
	}
	return requireAffected(res)
}

// Count implements query.Source.
func (r *AccountRepo) Count(ctx context.Context, p query.Predicate) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+p.Where(), p.Args()...).Scan(&n); err != nil {
		return 0, pkgerrors.Wrap(err, "count users")
	}
	return n, nil
}

// Fetch implements query.Source.
func (r *AccountRepo) Fetch(ctx context.Context, p query.Predicate, w query.Window) ([]model.Account, error) {
	q := "SELECT " + accountColumns + " FROM users" + p.Where() + " ORDER BY " + query.Order + " LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, append(p.Args(), w.Limit, w.Offset)...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list users")
	}
	defer rows.Close()

	out := make([]model.Account, 0, w.Limit)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "scan user")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(s rowScanner) (model.Account, error) {
	var a model.Account
	var avatar sql.NullString
	err := s.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Active, &avatar, &a.CreatedAt, &a.UpdatedAt)
	if avatar.Valid {
		a.Avatar = &avatar.String
	}
	return a, err
}

// requireAffected maps "no row touched" to ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
