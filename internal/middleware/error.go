package middleware

import (
    "log/slog"
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/pkg/errors"
)

// ErrorHandler replaces Echo's default HTTPErrorHandler. Echo's own errors
// (unknown route, bad method, oversized body) keep their status; anything
// else is logged and answered with a generic 500.
type ErrorHandler struct {
    logger *slog.Logger
}

func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
    return &ErrorHandler{logger: logger}
}

// Handle implements echo.HTTPErrorHandler.
func (h *ErrorHandler) Handle(err error, c echo.Context) {
    if c.Response().Committed {
        return
    }

    var httpErr *echo.HTTPError
    if errors.As(err, &httpErr) {
        msg, ok := httpErr.Message.(string)
        if !ok {
            msg = http.StatusText(httpErr.Code)
        }
        _ = c.JSON(httpErr.Code, echo.Map{"error": msg})
        return
    }

    ctx := c.Request().Context()
    attrs := []any{
        slog.String("error", err.Error()),
        slog.String("path", c.Request().URL.Path),
        slog.String("method", c.Request().Method),
    }
    if p, ok := PrincipalFromContext(ctx); ok {
        attrs = append(attrs, slog.Uint64("user_id", p.SubjectID))
    }
    LoggerFrom(ctx, h.logger).Error("unhandled error", attrs...)
    _ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
