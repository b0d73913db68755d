package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/task-manager/internal/auth"
	"github.com/iliyamo/task-manager/internal/model"
	"github.com/iliyamo/task-manager/internal/query"
)

// TaskStore is the persistence the task service needs.
type TaskStore interface {
	query.Source[model.Task]
	Create(ctx context.Context, t *model.Task) error
	GetByID(ctx context.Context, id uint64) (model.Task, error)
	Update(ctx context.Context, t *model.Task) error
	SetStatus(ctx context.Context, id, ownerID uint64, status string) error
	SetPublic(ctx context.Context, id, ownerID uint64, public bool) error
	SetAttachment(ctx context.Context, id, ownerID uint64, path string) error
	DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64, allow func(principalID, ownerID uint64) bool) error
}

// AccountReader resolves accounts for the public-tasks listing.
type AccountReader interface {
	GetByID(ctx context.Context, id uint64) (model.Account, error)
}

// AttachmentStore keeps uploaded files.
type AttachmentStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// CreateTaskInput is a new task. Priority defaults to medium and status to
// pending.
type CreateTaskInput struct {
	Name        string
	Description string
	Priority    string
	Status      string
	DueDate     *time.Time
	Category    *string
	IsPublic    bool
}

// TaskPatch lists the task fields to change; nil means unchanged. The
// Clear flags remove the optional fields and win over a value. The owner is
// not patchable.
type TaskPatch struct {
	Name          *string
	Description   *string
	Priority      *string
	Status        *string
	DueDate       *time.Time
	ClearDueDate  bool
	Category      *string
	ClearCategory bool
	IsPublic      *bool
}

// TaskService implements task CRUD, listings, toggles and attachments.
type TaskService struct {
	tasks       TaskStore
	accounts    AccountReader
	attachments AttachmentStore
	logger      *slog.Logger
}

func NewTaskService(tasks TaskStore, accounts AccountReader, attachments AttachmentStore, logger *slog.Logger) *TaskService {
	return &TaskService{tasks: tasks, accounts: accounts, attachments: attachments, logger: logger}
}

// List pages through the caller's own tasks.
func (s *TaskService) List(ctx context.Context, p auth.Principal, f query.TaskFilter, page query.Page) (query.Result[model.Task], error) {
	return query.Run[model.Task](ctx, s.tasks, f.Apply(query.OwnedBy(p.SubjectID)), page)
}

// PublicFeed pages through other accounts' public tasks.
func (s *TaskService) PublicFeed(ctx context.Context, p auth.Principal, f query.TaskFilter, page query.Page) (query.Result[model.Task], error) {
	return query.Run[model.Task](ctx, s.tasks, f.Apply(query.PublicFeed(p.SubjectID)), page)
}

// PublicOf pages through one account's public tasks. Only a missing
// account is an error; no public tasks is an empty page.
func (s *TaskService) PublicOf(ctx context.Context, ownerID uint64, f query.TaskFilter, page query.Page) (query.Result[model.Task], error) {
	if _, err := s.accounts.GetByID(ctx, ownerID); err != nil {
		return query.Result[model.Task]{}, err
	}
	return query.Run[model.Task](ctx, s.tasks, f.Apply(query.PublicOf(ownerID)), page)
}

// Create stores a task owned by the caller.
func (s *TaskService) Create(ctx context.Context, p auth.Principal, in CreateTaskInput) (model.Task, error) {
	t := model.Task{
		OwnerID:     p.SubjectID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Priority:    in.Priority,
		Status:      strings.TrimSpace(in.Status),
		DueDate:     in.DueDate,
		Category:    in.Category,
		IsPublic:    in.IsPublic,
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if t.Status == "" {
		t.Status = model.StatusPending
	}
	if err := s.tasks.Create(ctx, &t); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

// Get returns a task the caller owns, or any public task.
func (s *TaskService) Get(ctx context.Context, p auth.Principal, id uint64) (model.Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	if !auth.CanView(p.SubjectID, t.OwnerID, t.IsPublic) {
		return model.Task{}, ErrForbidden
	}
	return t, nil
}

// Update applies patch to a task the caller owns.
func (s *TaskService) Update(ctx context.Context, p auth.Principal, id uint64, patch TaskPatch) (model.Task, error) {
	t, err := s.owned(ctx, p, id)
	if err != nil {
		return model.Task{}, err
	}
	if patch.Name != nil {
		t.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		t.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.Status != nil {
		t.Status = strings.TrimSpace(*patch.Status)
	}
	switch {
	case patch.ClearDueDate:
		t.DueDate = nil
	case patch.DueDate != nil:
		t.DueDate = patch.DueDate
	}
	switch {
	case patch.ClearCategory:
		t.Category = nil
	case patch.Category != nil:
		t.Category = patch.Category
	}
	if patch.IsPublic != nil {
		t.IsPublic = *patch.IsPublic
	}
	if err := s.tasks.Update(ctx, &t); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

// ToggleStatus flips a completed task to pending and anything else to done.
func (s *TaskService) ToggleStatus(ctx context.Context, p auth.Principal, id uint64) (model.Task, error) {
	t, err := s.owned(ctx, p, id)
	if err != nil {
		return model.Task{}, err
	}
	next := model.StatusDone
	if t.Completed() {
		next = model.StatusPending
	}
	if err := s.tasks.SetStatus(ctx, t.ID, t.OwnerID, next); err != nil {
		return model.Task{}, err
	}
	t.Status = next
	return t, nil
}

// TogglePublic flips the visibility of a task the caller owns.
func (s *TaskService) TogglePublic(ctx context.Context, p auth.Principal, id uint64) (model.Task, error) {
	t, err := s.owned(ctx, p, id)
	if err != nil {
		return model.Task{}, err
	}
	if err := s.tasks.SetPublic(ctx, t.ID, t.OwnerID, !t.IsPublic); err != nil {
		return model.Task{}, err
	}
	t.IsPublic = !t.IsPublic
	return t, nil
}

// Attach stores r as the attachment of a task the caller owns. Ownership is
// checked before anything is written; a replaced attachment is removed.
func (s *TaskService) Attach(ctx context.Context, p auth.Principal, id uint64, filename string, r io.Reader) (model.Task, error) {
	t, err := s.owned(ctx, p, id)
	if err != nil {
		return model.Task{}, err
	}
	key, err := s.attachments.Save(ctx, filename, r)
	if err != nil {
		return model.Task{}, err
	}
	if err := s.tasks.SetAttachment(ctx, t.ID, t.OwnerID, key); err != nil {
		s.dropAttachment(ctx, key)
		return model.Task{}, err
	}
	if old := t.AttachmentPath; old != nil && *old != "" {
		s.dropAttachment(ctx, *old)
	}
	t.AttachmentPath = &key
	return t, nil
}

// Delete removes a task the caller owns, then its attachment. Visibility
// plays no part.
func (s *TaskService) Delete(ctx context.Context, p auth.Principal, id uint64) error {
	// read only for the attachment key; the delete decides NotFound and Forbidden
	t, _ := s.tasks.GetByID(ctx, id)
	if err := s.tasks.DeleteByIDAndOwner(ctx, id, p.SubjectID, auth.Allows); err != nil {
		return err
	}
	if t.AttachmentPath != nil && *t.AttachmentPath != "" {
		s.dropAttachment(ctx, *t.AttachmentPath)
	}
	return nil
}

// owned loads a task and applies the ownership policy.
func (s *TaskService) owned(ctx context.Context, p auth.Principal, id uint64) (model.Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	if !auth.Allows(p.SubjectID, t.OwnerID) {
		return model.Task{}, ErrForbidden
	}
	return t, nil
}

func (s *TaskService) dropAttachment(ctx context.Context, key string) {
	if err := s.attachments.Delete(ctx, key); err != nil {
		s.logger.Warn("remove attachment failed", slog.String("key", key), slog.String("error", errors.Cause(err).Error()))
	}
}
