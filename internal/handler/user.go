package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/task-manager/internal/service"
    "github.com/iliyamo/task-manager/internal/storage"
)

// UserHandler serves the account listing and self-service endpoints.
type UserHandler struct {
    Accounts *service.AccountService
    Tasks    *service.TaskService
}

func NewUserHandler(accounts *service.AccountService, tasks *service.TaskService) *UserHandler {
    if accounts == nil || tasks == nil {
        panic("nil service passed to NewUserHandler")
    }
    return &UserHandler{Accounts: accounts, Tasks: tasks}
}

type updateUserReq struct {
    Name     *string `json:"name" validate:"omitempty,min=1,max=120"`
    Email    *string `json:"email" validate:"omitempty,email,max=255"`
    Password *string `json:"password" validate:"omitempty,min=6,max=30"`
}

// List pages through accounts; ?search matches name or email.
func (h *UserHandler) List(c echo.Context) error {
    q, err := bindListQuery(c)
    if err != nil {
        return fail(c, err, "")
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    res, err := h.Accounts.List(ctx, q.userFilter(), q.page())
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, res)
}

// Get returns the public view of one account.
func (h *UserHandler) Get(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid user id")
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    acc, err := h.Accounts.Get(ctx, id)
    if err != nil {
        return fail(c, err, "user")
    }
    return c.JSON(http.StatusOK, acc.Public())
}

// PublicTasks pages through one account's public tasks, with the same
// filters as the task listing.
func (h *UserHandler) PublicTasks(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid user id")
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

    res, err := h.Tasks.PublicOf(ctx, id, f, q.page())
    if err != nil {
        return fail(c, err, "user")
    }
    return c.JSON(http.StatusOK, res)
}

// Update changes the caller's own account.
func (h *UserHandler) Update(c echo.Context) error {
    p, ok := principal(c)
    if !ok {
        return unauthenticated(c)
    }
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid user id")
    }
    var req updateUserReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if err := c.Validate(&req); err != nil {
        return fail(c, err, "")
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    acc, err := h.Accounts.UpdateSelf(ctx, p, id, service.AccountPatch{Name: req.Name, Email: req.Email, Password: req.Password})
    if err != nil {
        return fail(c, err, "user")
    }
    return c.JSON(http.StatusOK, acc)
}

// UploadAvatar replaces the caller's avatar with a multipart "avatar"
// image. Only jpeg and png are accepted.
func (h *UserHandler) UploadAvatar(c echo.Context) error {
    p, ok := principal(c)
    if !ok {
        return unauthenticated(c)
    }
    fh, err := c.FormFile("avatar")
    if err != nil {
        return badRequest(c, "avatar is required")
    }
    if fh.Size > storage.AvatarMaxBytes {
        return fail(c, storage.ErrTooLarge, "")
    }
    if !storage.AvatarAllowed(fh.Filename) {
        return fail(c, storage.ErrUnsupportedType, "")
    }
    f, err := fh.Open()
    if err != nil {
        return err
    }
    defer f.Close()

    ctx, cancel := withTimeout(c)
    defer cancel()

    acc, err := h.Accounts.UploadAvatar(ctx, p, fh.Filename, f)
    if err != nil {
        return fail(c, err, "user")
    }
    return c.JSON(http.StatusOK, acc)
}

// Delete removes the caller's own account and its tasks.
func (h *UserHandler) Delete(c echo.Context) error {
    p, ok := principal(c)
    if !ok {
        return unauthenticated(c)
    }
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid user id")
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    if err := h.Accounts.DeleteSelf(ctx, p, id); err != nil {
        return fail(c, err, "user")
    }
    return c.NoContent(http.StatusNoContent)
}
