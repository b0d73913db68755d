package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "database/sql"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// HealthHandler answers load balancer and monitoring probes.
type HealthHandler struct {
    db *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler { return &HealthHandler{db: db} }

// Health returns "ok" when the database answers a ping within a second and
// 503 otherwise.
func (h *HealthHandler) Health(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
    defer cancel()
    if err := h.db.PingContext(ctx); err != nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
    }
    return c.String(http.StatusOK, "ok")
}
