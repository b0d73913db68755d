package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/task-manager/internal/auth"
	"github.com/iliyamo/task-manager/internal/database"
	"github.com/iliyamo/task-manager/internal/model"
	"github.com/iliyamo/task-manager/internal/query"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, "sqlite3"))
	return db
}

func mustAccount(t *testing.T, repo *AccountRepo, name, email string) model.Account {
	t.Helper()
	a := model.Account{Name: name, Email: email, PasswordHash: "hash", Active: true}
	require.NoError(t, repo.Create(context.Background(), &a))
	return a
}

func mustTask(t *testing.T, repo *TaskRepo, owner uint64, name, priority string, public bool) model.Task {
	t.Helper()
	task := model.Task{OwnerID: owner, Name: name, Description: "description of " + name,
		Priority: priority, Status: model.StatusPending, IsPublic: public}
	require.NoError(t, repo.Create(context.Background(), &task))
	return task
}

func TestAccountRepo_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo(newTestDB(t))

	a := mustAccount(t, repo, "Alice", "  alice@example.com ")
	assert.NotZero(t, a.ID)
	assert.Equal(t, "alice@example.com", a.Email)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.True(t, got.Active)
	assert.Equal(t, "hash", got.PasswordHash)

	got, err = repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccountRepo_EmailUniqueAndCaseSensitive(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo(newTestDB(t))
	mustAccount(t, repo, "Alice", "alice@example.com")

	dup := model.Account{Name: "Other", Email: "alice@example.com", PasswordHash: "h", Active: true}
	assert.ErrorIs(t, repo.Create(ctx, &dup), ErrConflict)

	upper := mustAccount(t, repo, "Upper", "Alice@example.com")
	_, err := repo.GetByEmail(ctx, "ALICE@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := repo.GetByEmail(ctx, "Alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, upper.ID, got.ID)
}

func TestAccountRepo_Update(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo(newTestDB(t))
	a := mustAccount(t, repo, "Alice", "alice@example.com")
	b := mustAccount(t, repo, "Bob", "bob@example.com")

	a.Name = "Alice Liddell"
	require.NoError(t, repo.Update(ctx, &a))
	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", got.Name)

	b.Email = "alice@example.com"
	assert.ErrorIs(t, repo.Update(ctx, &b), ErrConflict)

	ghost := model.Account{ID: 404, Name: "x", Email: "x@example.com"}
	assert.ErrorIs(t, repo.Update(ctx, &ghost), ErrNotFound)
}

func TestAccountRepo_SetAvatar(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo(newTestDB(t))
	a := mustAccount(t, repo, "Alice", "alice@example.com")
	assert.Nil(t, a.Avatar)

	require.NoError(t, repo.SetAvatar(ctx, a.ID, "avatars/1/a.png"))
	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Avatar)
	assert.Equal(t, "avatars/1/a.png", *got.Avatar)

	assert.ErrorIs(t, repo.SetAvatar(ctx, 999, "avatars/999/x.png"), ErrNotFound)
}

func TestAccountRepo_DeleteCascadesTasks(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	accounts, tasks := NewAccountRepo(db), NewTaskRepo(db)

	a := mustAccount(t, accounts, "Alice", "alice@example.com")
	b := mustAccount(t, accounts, "Bob", "bob@example.com")
	mustTask(t, tasks, a.ID, "alpha", "low", false)
	mustTask(t, tasks, a.ID, "beta", "low", true)
	kept := mustTask(t, tasks, b.ID, "gamma", "low", false)

	require.NoError(t, accounts.Delete(ctx, a.ID))
	assert.ErrorIs(t, accounts.Delete(ctx, a.ID), ErrNotFound)

	n, err := tasks.Count(ctx, query.OwnedBy(a.ID))
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = tasks.GetByID(ctx, kept.ID)
	assert.NoError(t, err)
}

func TestAccountRepo_SearchUsers(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo(newTestDB(t))
	mustAccount(t, repo, "Ann Smith", "ann@example.com")
	mustAccount(t, repo, "Bob", "bob@annex.io")
	mustAccount(t, repo, "Carl", "carl@example.com")

	res, err := query.Run[model.Account](ctx, repo, query.UserFilter{Search: "ann"}.Apply(query.AllUsers()), query.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Meta.Total)
	require.Len(t, res.Data, 2)
	// newest first
	assert.Equal(t, "Bob", res.Data[0].Name)
	assert.Equal(t, "Ann Smith", res.Data[1].Name)
}

func seedTwentyThree(t *testing.T, repo *TaskRepo, owner uint64) {
	t.Helper()
	for i := 0; i < 23; i++ {
		priority := "low"
		if i%2 == 0 {
			priority = "high" // 12 of 23
		}
		mustTask(t, repo, owner, fmt.Sprintf("task %02d", i), priority, false)
	}
}

func TestTaskRepo_PagingIsDeterministic(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	accounts, tasks := NewAccountRepo(db), NewTaskRepo(db)
	a := mustAccount(t, accounts, "Alice", "alice@example.com")
	other := mustAccount(t, accounts, "Bob", "bob@example.com")
	seedTwentyThree(t, tasks, a.ID)
	mustTask(t, tasks, other.ID, "not mine", "high", true)

	var sizes []int
	seen := map[uint64]bool{}
	for page := 1; page <= 3; page++ {
		res, err := query.Run[model.Task](ctx, tasks, query.OwnedBy(a.ID), query.Page{Page: page, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, query.Meta{Total: 23, Page: page, Limit: 10, TotalPages: 3}, res.Meta)
		sizes = append(sizes, len(res.Data))
		for _, task := range res.Data {
			assert.False(t, seen[task.ID], "task %d on two pages", task.ID)
			seen[task.ID] = true
		}
	}
	assert.Equal(t, []int{10, 10, 3}, sizes)
	assert.Len(t, seen, 23)

	res, err := query.Run[model.Task](ctx, tasks, query.OwnedBy(a.ID), query.Page{Page: 4, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Data)
	assert.Equal(t, int64(23), res.Meta.Total)

	first, err := query.Run[model.Task](ctx, tasks, query.OwnedBy(a.ID), query.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, "task 22", first.Data[0].Name)
}

func TestTaskRepo_PriorityFilterIndependentOfPaging(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	a := mustAccount(t, NewAccountRepo(db), "Alice", "alice@example.com")
	tasks := NewTaskRepo(db)
	seedTwentyThree(t, tasks, a.ID)

	p := query.TaskFilter{Priority: "high"}.Apply(query.OwnedBy(a.ID))
	for _, page := range []query.Page{{Page: 1, Limit: 5}, {Page: 2, Limit: 100}, {Page: 7, Limit: 3}} {
		res, err := query.Run[model.Task](ctx, tasks, p, page)
		require.NoError(t, err)
		assert.Equal(t, int64(12), res.Meta.Total)
		for _, task := range res.Data {
			assert.Equal(t, "high", task.Priority)
		}
	}
}

func TestTaskRepo_SearchEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	a := mustAccount(t, NewAccountRepo(db), "Alice", "alice@example.com")
	tasks := NewTaskRepo(db)
	mustTask(t, tasks, a.ID, "save 100% now", "low", false)
	mustTask(t, tasks, a.ID, "save 1000 now", "low", false)
	mustTask(t, tasks, a.ID, "snake_case", "low", false)
	mustTask(t, tasks, a.ID, "snakeXcase", "low", false)

	count := func(search string) int64 {
		n, err := tasks.Count(ctx, query.TaskFilter{Search: search}.Apply(query.OwnedBy(a.ID)))
		require.NoError(t, err)
		return n
	}
	assert.Equal(t, int64(1), count("100%"))
	assert.Equal(t, int64(1), count("e_c"))
	assert.Equal(t, int64(4), count("  "))
	assert.Equal(t, int64(4), count("description"))
}

func TestTaskRepo_DueDateFilter(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	a := mustAccount(t, NewAccountRepo(db), "Alice", "alice@example.com")
	tasks := NewTaskRepo(db)

	morning := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	for _, due := range []time.Time{morning, morning.Add(14 * time.Hour), morning.Add(15 * time.Hour)} {
		d := due
		task := model.Task{OwnerID: a.ID, Name: "due", Description: "x", Priority: "low", Status: "pending", DueDate: &d}
		require.NoError(t, tasks.Create(ctx, &task))
	}

	day, err := query.ParseDueDate("2025-05-01")
	require.NoError(t, err)
	n, err := tasks.Count(ctx, query.TaskFilter{DueDate: &day}.Apply(query.OwnedBy(a.ID)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = tasks.Count(ctx, query.TaskFilter{DueDate: &query.DueDate{At: morning}}.Apply(query.OwnedBy(a.ID)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTaskRepo_PublicPredicates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	accounts, tasks := NewAccountRepo(db), NewTaskRepo(db)
	a := mustAccount(t, accounts, "Alice", "alice@example.com")
	b := mustAccount(t, accounts, "Bob", "bob@example.com")
	mustTask(t, tasks, a.ID, "a public", "low", true)
	mustTask(t, tasks, a.ID, "a private", "low", false)
	mustTask(t, tasks, b.ID, "b public", "low", true)

	n, err := tasks.Count(ctx, query.PublicFeed(a.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = tasks.Count(ctx, query.PublicFeed(0))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	res, err := query.Run[model.Task](ctx, tasks, query.PublicOf(a.ID), query.Page{})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "a public", res.Data[0].Name)
}

func TestTaskRepo_MutationsKeyedOnOwner(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	accounts, tasks := NewAccountRepo(db), NewTaskRepo(db)
	a := mustAccount(t, accounts, "Alice", "alice@example.com")
	b := mustAccount(t, accounts, "Bob", "bob@example.com")
	task := mustTask(t, tasks, a.ID, "alpha", "low", false)

	assert.ErrorIs(t, tasks.SetStatus(ctx, task.ID, b.ID, model.StatusDone), ErrNotFound)
	require.NoError(t, tasks.SetStatus(ctx, task.ID, a.ID, model.StatusDone))
	require.NoError(t, tasks.SetPublic(ctx, task.ID, a.ID, true))
	require.NoError(t, tasks.SetAttachment(ctx, task.ID, a.ID, "tasks/x.png"))

	got, err := tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed())
	assert.True(t, got.IsPublic)
	require.NotNil(t, got.AttachmentPath)
	assert.Equal(t, "tasks/x.png", *got.AttachmentPath)

	got.OwnerID = b.ID
	got.Name = "hijacked"
	assert.ErrorIs(t, tasks.Update(ctx, &got), ErrNotFound)
}

func TestTaskRepo_DeleteByIDAndOwner(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	accounts, tasks := NewAccountRepo(db), NewTaskRepo(db)
	x := mustAccount(t, accounts, "Xavier", "x@example.com")
	y := mustAccount(t, accounts, "Yvonne", "y@example.com")
	task := mustTask(t, tasks, x.ID, "alpha", "low", true)

	assert.ErrorIs(t, tasks.DeleteByIDAndOwner(ctx, task.ID, y.ID, auth.Allows), ErrForbidden)
	assert.ErrorIs(t, tasks.DeleteByIDAndOwner(ctx, 9999, x.ID, auth.Allows), ErrNotFound)
	require.NoError(t, tasks.DeleteByIDAndOwner(ctx, task.ID, x.ID, auth.Allows))
	_, err := tasks.GetByID(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskRepo_ListDueBetween(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	accounts, tasks := NewAccountRepo(db), NewTaskRepo(db)
	a := mustAccount(t, accounts, "Alice", "alice@example.com")

	tomorrow := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	mk := func(name, status string, due time.Time) {
		task := model.Task{OwnerID: a.ID, Name: name, Description: "x", Priority: "low", Status: status, DueDate: &due}
		require.NoError(t, tasks.Create(ctx, &task))
	}
	mk("due", "pending", tomorrow.Add(10*time.Hour))
	mk("done already", "DONE", tomorrow.Add(11*time.Hour))
	mk("later", "pending", tomorrow.Add(30*time.Hour))
	mk("earlier", "pending", tomorrow.Add(-time.Hour))

	due, err := tasks.ListDueBetween(ctx, tomorrow, tomorrow.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].Name)
	assert.Equal(t, "alice@example.com", due[0].OwnerEmail)
	assert.Equal(t, "Alice", due[0].OwnerName)
}
