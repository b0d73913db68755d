package handler // handler defines http handlers

import (
    "context"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/pkg/errors"

    "github.com/iliyamo/task-manager/internal/auth"
    "github.com/iliyamo/task-manager/internal/middleware"
    "github.com/iliyamo/task-manager/internal/query"
    "github.com/iliyamo/task-manager/internal/service"
    "github.com/iliyamo/task-manager/internal/storage"
    "github.com/iliyamo/task-manager/internal/validator"
)

// requestTimeout bounds the storage work of one request.
const requestTimeout = 5 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// principal returns the guard's principal. Handlers behind the guard
// always have one; the false branch only fires on a mis-registered route.
func principal(c echo.Context) (auth.Principal, bool) {
    return middleware.PrincipalFrom(c)
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func unauthenticated(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
}

// fail maps domain errors to their fixed client responses. Anything it does
// not recognise is returned to Echo's error handler, which logs it and
// answers 500 without detail.
func fail(c echo.Context, err error, resource string) error {
    var verr *validator.Error
    switch {
    case errors.Is(err, service.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": resource + " not found"})
    case errors.Is(err, service.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, service.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
    case errors.Is(err, auth.ErrInvalidCredentials):
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
    case errors.Is(err, storage.ErrUnsupportedType):
        return badRequest(c, "unsupported file type")
    case errors.Is(err, storage.ErrTooLarge):
        return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file too large"})
    case errors.As(err, &verr):
        return badRequest(c, verr.Message)
    }
    return err
}

// listQuery holds the raw listing parameters; validation happens on this
// struct before it is turned into a filter and a page.
type listQuery struct {
    Search   string `query:"search"`
    Priority string `query:"priority" validate:"omitempty,oneof=low medium high"`
    Status   string `query:"status" validate:"omitempty,max=32"`
    Category string `query:"category" validate:"omitempty,max=120"`
    DueDate  string `query:"dueDate"`
    IsPublic string `query:"isPublic" validate:"omitempty,oneof=true false 1 0"`
    Page     int    `query:"page" validate:"omitempty,min=1"`
    Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// bindListQuery parses the listing parameters shared by task and user
// listings. Unknown parameters are ignored.
func bindListQuery(c echo.Context) (listQuery, error) {
    var q listQuery
    err := echo.QueryParamsBinder(c).
        String("search", &q.Search).
        String("priority", &q.Priority).
        String("status", &q.Status).
        String("category", &q.Category).
        String("dueDate", &q.DueDate).
        String("isPublic", &q.IsPublic).
        Int("page", &q.Page).
        Int("limit", &q.Limit).
        BindError()
    if err != nil {
        return q, &validator.Error{Message: "page and limit must be integers"}
    }
    q.Priority = strings.TrimSpace(q.Priority)
    q.Status = strings.TrimSpace(q.Status)
    q.Category = strings.TrimSpace(q.Category)
    if err := c.Validate(&q); err != nil {
        return q, err
    }
    return q, nil
}

func (q listQuery) page() query.Page {
    return query.Page{Page: q.Page, Limit: q.Limit}
}

func (q listQuery) taskFilter() (query.TaskFilter, error) {
    f := query.TaskFilter{
        Search:   q.Search,
        Priority: q.Priority,
        Status:   q.Status,
        Category: q.Category,
    }
    if q.IsPublic != "" {
        v := q.IsPublic == "true" || q.IsPublic == "1"
        f.IsPublic = &v
    }
    if strings.TrimSpace(q.DueDate) != "" {
        d, err := query.ParseDueDate(q.DueDate)
        if err != nil {
            return f, &validator.Error{Message: "dueDate must be an ISO-8601 date or timestamp"}
        }
        f.DueDate = &d
    }
    return f, nil
}

func (q listQuery) userFilter() query.UserFilter {
    return query.UserFilter{Search: q.Search}
}
