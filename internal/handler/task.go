package handler

import (
    "context"
    "encoding/json"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/task-manager/internal/auth"
    "github.com/iliyamo/task-manager/internal/model"
    "github.com/iliyamo/task-manager/internal/query"
    "github.com/iliyamo/task-manager/internal/service"
    "github.com/iliyamo/task-manager/internal/storage"
    "github.com/iliyamo/task-manager/internal/validator"
)

// TaskHandler serves task CRUD, listings, toggles and attachment uploads.
// Every route is registered behind the guard.
type TaskHandler struct {
    Tasks    *service.TaskService
    MaxBytes int64 // upload size limit, checked before the body is read
}

func NewTaskHandler(tasks *service.TaskService, maxBytes int64) *TaskHandler {
    if tasks == nil {
        panic("nil TaskService passed to NewTaskHandler")
    }
    return &TaskHandler{Tasks: tasks, MaxBytes: maxBytes}
}

// ----- DTOs -----

type createTaskReq struct {
    Name        string  `json:"name" validate:"required,min=5,max=255"`
    Description string  `json:"description" validate:"required,min=5"`
    Priority    string  `json:"priority" validate:"omitempty,oneof=low medium high"`
    Status      string  `json:"status" validate:"omitempty,max=32"`
    DueDate     string  `json:"dueDate"`
    Category    *string `json:"category" validate:"omitempty,max=120"`
    IsPublic    bool    `json:"isPublic"`
}

type updateTaskReq struct {
    Name        *string        `json:"name" validate:"omitempty,min=5,max=255"`
    Description *string        `json:"description" validate:"omitempty,min=5"`
    Priority    *string        `json:"priority" validate:"omitempty,oneof=low medium high"`
    Status      *string        `json:"status" validate:"omitempty,min=1,max=32"`
    DueDate     optionalString `json:"dueDate"`
    Category    optionalString `json:"category"`
    IsPublic    *bool          `json:"isPublic"`
}

// optionalString tells an absent field from an explicit null: Set is true
// whenever the key was present, and Value is nil for null.
type optionalString struct {
    Set   bool
    Value *string
}

func (o *optionalString) UnmarshalJSON(b []byte) error {
    o.Set = true
    if string(b) == "null" {
        o.Value = nil
        return nil
    }
    var s string
    if err := json.Unmarshal(b, &s); err != nil {
        return err
    }
    o.Value = &s
    return nil
}

// cleared reports whether the field was sent as null or blank.
func (o optionalString) cleared() bool {
    return o.Set && (o.Value == nil || strings.TrimSpace(*o.Value) == "")
}

// dueDate parses an optional due date; blank yields nil.
func dueDate(s string) (*time.Time, error) {
    if strings.TrimSpace(s) == "" {
        return nil, nil
    }
    d, err := query.ParseDueDate(s)
    if err != nil {
        return nil, &validator.Error{Message: "dueDate must be an ISO-8601 date or timestamp"}
    }
    at := d.At
    return &at, nil
}

// List pages through the caller's own tasks.
func (h *TaskHandler) List(c echo.Context) error {
    p, ok := principal(c)
    if !ok {
        return unauthenticated(c)
    }
    q, err := bindListQuery(c)
    if err != nil {
        return fail(c, err, "")
    }
    f, err := q.taskFilter()
    if err != nil {
        return fail(c, err, "")
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    res, err := h.Tasks.List(ctx, p, f, q.page())
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, res)
}

// PublicFeed pages through other accounts' public tasks.
func (h *TaskHandler) PublicFeed(c echo.Context) error {
    p, ok := principal(c)
    if !ok {
        return unauthenticated(c)
    }
    q, err := bindListQuery(c)
    if err != nil {
        return fail(c, err, "")
    }
    f, err := q.taskFilter()
    if err != nil {
        return fail(c, err, "")
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    res, err := h.Tasks.PublicFeed(ctx, p, f, q.page())
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, res)
}

// Create stores a new task owned by the caller.
func (h *TaskHandler) Create(c echo.Context) error {
    p, ok := principal(c)
    if !ok {
        return unauthenticated(c)
    }
    var req createTaskReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if err := c.Validate(&req); err != nil {
        return fail(c, err, "")
    }
    due, err := dueDate(req.DueDate)
    if err != nil {
        return fail(c, err, "")
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    t, err := h.Tasks.Create(ctx, p, service.CreateTaskInput{
        Name:        req.Name,
        Description: req.Description,
        Priority:    req.Priority,
        Status:      req.Status,
        DueDate:     due,
        Category:    req.Category,
        IsPublic:    req.IsPublic,
    })
    if err != nil {
        return fail(c, err, "task")
    }
    return c.JSON(http.StatusCreated, t)
}

// Get returns one task the caller owns or that is public.
func (h *TaskHandler) Get(c echo.Context) error {
    p, ok := principal(c)
    if !ok {
        return unauthenticated(c)
    }
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid task id")
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    t, err := h.Tasks.Get(ctx, p, id)
    if err != nil {
        return fail(c, err, "task")
    }
    return c.JSON(http.StatusOK, t)
}

// Update patches a task the caller owns.
func (h *TaskHandler) Update(c echo.Context) error {
    p, ok := principal(c)
    if !ok {
        return unauthenticated(c)
    }
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid task id")
    }
    var req updateTaskReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if err := c.Validate(&req); err != nil {
        return fail(c, err, "")
    }
    patch := service.TaskPatch{
        Name:        req.Name,
        Description: req.Description,
        Priority:    req.Priority,
        Status:      req.Status,
        IsPublic:    req.IsPublic,
    }
    // null or blank clears dueDate and category; absent leaves them alone
    switch {
    case req.DueDate.cleared():
        patch.ClearDueDate = true
    case req.DueDate.Set:
        due, err := dueDate(*req.DueDate.Value)
        if err != nil {
            return fail(c, err, "")
        }
        patch.DueDate = due
    }
    switch {
    case req.Category.cleared():
        patch.ClearCategory = true
    case req.Category.Set:
        if len(*req.Category.Value) > 120 {
            return badRequest(c, "category must be at most 120 characters")
        }
        patch.Category = req.Category.Value
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    t, err := h.Tasks.Update(ctx, p, id, patch)
    if err != nil {
        return fail(c, err, "task")
    }
    return c.JSON(http.StatusOK, t)
}

// ToggleStatus flips a task between completed and pending.
func (h *TaskHandler) ToggleStatus(c echo.Context) error {
    return h.toggle(c, h.Tasks.ToggleStatus)
}

// TogglePublic flips a task's visibility.
func (h *TaskHandler) TogglePublic(c echo.Context) error {
    return h.toggle(c, h.Tasks.TogglePublic)
}

func (h *TaskHandler) toggle(c echo.Context, op func(context.Context, auth.Principal, uint64) (model.Task, error)) error {
    p, ok := principal(c)
    if !ok {
        return unauthenticated(c)
    }
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid task id")
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    t, err := op(ctx, p, id)
    if err != nil {
        return fail(c, err, "task")
    }
    return c.JSON(http.StatusOK, t)
}

// Upload attaches a multipart "file" to a task the caller owns.
func (h *TaskHandler) Upload(c echo.Context) error {
    p, ok := principal(c)
    if !ok {
        return unauthenticated(c)
    }
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid task id")
    }
    fh, err := c.FormFile("file")
    if err != nil {
        return badRequest(c, "file is required")
    }
    if h.MaxBytes > 0 && fh.Size > h.MaxBytes {
        return fail(c, storage.ErrTooLarge, "")
    }
    if !storage.Allowed(fh.Filename) {
        return fail(c, storage.ErrUnsupportedType, "")
    }
    f, err := fh.Open()
    if err != nil {
        return err
    }
    defer f.Close()

    ctx, cancel := withTimeout(c)
    defer cancel()

    t, err := h.Tasks.Attach(ctx, p, id, fh.Filename, f)
    if err != nil {
        return fail(c, err, "task")
    }
    return c.JSON(http.StatusOK, t)
}

// Delete removes a task the caller owns. Public visibility grants nothing.
func (h *TaskHandler) Delete(c echo.Context) error {
    p, ok := principal(c)
    if !ok {
        return unauthenticated(c)
    }
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid task id")
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    if err := h.Tasks.Delete(ctx, p, id); err != nil {
        return fail(c, err, "task")
    }
    return c.NoContent(http.StatusNoContent)
}
