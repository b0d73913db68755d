package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"
	"strconv"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/task-manager/internal/handler"
	"github.com/iliyamo/task-manager/internal/middleware"
	"github.com/iliyamo/task-manager/internal/storage"
	"github.com/iliyamo/task-manager/internal/validator"
)

// multipartSlack is allowed on top of the attachment limit for the
// multipart framing around the file.
const multipartSlack = 64 << 10

// New creates the Echo instance with the validator, the error handler and
// the process-wide middleware installed. Routes are added by the Register
// functions below.
func New(logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.New()
	e.HTTPErrorHandler = middleware.NewErrorHandler(logger).Handle
	e.Use(echomw.Recover())
	e.Use(middleware.NewRequestLogger(logger).Handle)
	return e
}

// RegisterRoutes registers routes that do not require authentication and
// touch no account data. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers registration, login and the current-account view.
// The guard is attached per route; nothing under /v1 is guarded implicitly.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, guard *middleware.Guard) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	// POST /v1/users is kept as an alias of register.
	e.POST("/v1/users", a.Register)
	e.GET("/v1/me", a.Me, guard.Authenticate)
}

// RegisterUsers registers the account endpoints. Only the account listing
// goes through the response cache; the account service bumps the cache
// generation on every account mutation. Public task pages depend on task
// visibility and are always read from the database.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, guard *middleware.Guard, cache *middleware.ResponseCache) {
	e.GET("/v1/users", u.List, cache.Handle)
	e.GET("/v1/users/:id", u.Get)
	e.GET("/v1/users/:id/public-tasks", u.PublicTasks)

	e.PATCH("/v1/users/:id", u.Update, guard.Authenticate)
	e.DELETE("/v1/users/:id", u.Delete, guard.Authenticate)
	e.POST("/v1/users/upload", u.UploadAvatar, guard.Authenticate,
		echomw.BodyLimit(strconv.FormatInt(storage.AvatarMaxBytes+multipartSlack, 10)+"B"))
}

// RegisterTasks registers the task endpoints. Every route requires a valid
// token; ownership is decided by the service, not here.
func RegisterTasks(e *echo.Echo, t *handler.TaskHandler, guard *middleware.Guard) {
	g := e.Group("/v1/tasks")
	g.GET("", t.List, guard.Authenticate)
	g.GET("/public", t.PublicFeed, guard.Authenticate)
	g.POST("", t.Create, guard.Authenticate)
	g.GET("/:id", t.Get, guard.Authenticate)
	g.PATCH("/:id", t.Update, guard.Authenticate)
	g.PATCH("/:id/toggle", t.ToggleStatus, guard.Authenticate)
	g.PATCH("/:id/toggle-public", t.TogglePublic, guard.Authenticate)
	g.DELETE("/:id", t.Delete, guard.Authenticate)

	// The guard runs before the body limit so anonymous uploads are
	// rejected without reading the body.
	upload := []echo.MiddlewareFunc{guard.Authenticate}
	if t.MaxBytes > 0 {
		upload = append(upload, echomw.BodyLimit(strconv.FormatInt(t.MaxBytes+multipartSlack, 10)+"B"))
	}
	g.POST("/:id/upload", t.Upload, upload...)
}
