package middleware

import (
    "context"
    "log/slog"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
)

type loggerCtxKey struct{}

// RequestLogger tags every request with an id and writes one access-log
// line when it completes.
type RequestLogger struct {
    logger *slog.Logger
}

func NewRequestLogger(logger *slog.Logger) *RequestLogger {
    return &RequestLogger{logger: logger}
}

// Handle reuses an incoming X-Request-ID or generates one, echoes it on the
// response and puts a child logger carrying it into the request context.
func (m *RequestLogger) Handle(next echo.HandlerFunc) echo.HandlerFunc {
    return func(c echo.Context) error {
        start := time.Now()
        req := c.Request()

        id := req.Header.Get(echo.HeaderXRequestID)
        if id == "" || len(id) > 128 {
            id = uuid.NewString()
        }
        c.Response().Header().Set(echo.HeaderXRequestID, id)

        reqLogger := m.logger.With(slog.String("request_id", id))
        c.SetRequest(req.WithContext(context.WithValue(req.Context(), loggerCtxKey{}, reqLogger)))

        err := next(c)
        if err != nil {
            // let the error handler write the response so the status is known
            c.Error(err)
        }
        m.logRequest(c, reqLogger, start, err)
        return nil
    }
}

func (m *RequestLogger) logRequest(c echo.Context, logger *slog.Logger, start time.Time, err error) {
    req := c.Request()
    res := c.Response()
    latency := time.Since(start)

    fields := []slog.Attr{
        slog.String("method", req.Method),
        slog.String("uri", req.URL.Path),
        slog.Int("status", res.Status),
        slog.Duration("latency", latency),
        slog.String("remote_ip", c.RealIP()),
        slog.String("user", userID(c)),
    }
    if len(req.URL.RawQuery) > 0 {
        fields = append(fields, slog.String("query", req.URL.RawQuery))
    }
    if err != nil {
        fields = append(fields, slog.String("error", err.Error()))
    }

    level := slog.LevelInfo
    if res.Status >= 400 {
        level = slog.LevelWarn
    }
    if res.Status >= 500 {
        level = slog.LevelError
    }
    logger.LogAttrs(context.Background(), level, "HTTP Request", fields...)
}

// LoggerFrom returns the request-scoped logger, or fallback outside a
// request.
func LoggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
    if l, ok := ctx.Value(loggerCtxKey{}).(*slog.Logger); ok {
        return l
    }
    return fallback
}
