package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "fmt"
    "log/slog"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/task-manager/internal/config"
)

// captureWriter tees the response body into a buffer, up to limit bytes,
// while forwarding everything to the client.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }

func (cw *captureWriter) Write(b []byte) (int, error) {
    if cw.limit <= 0 || cw.size+int64(len(b)) <= cw.limit {
        cw.buf.Write(b)
    }
    cw.size += int64(len(b))
    return cw.ResponseWriter.Write(b)
}

// overflowed reports whether the body outgrew the buffer.
func (cw *captureWriter) overflowed() bool { return cw.limit > 0 && cw.size > cw.limit }

// cacheKeyFrom builds a stable cache key honoring prefix and strategy.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    method := r.Method
    route := c.Path()
    // the route pattern alone would merge /users/1 and /users/2
    path := r.URL.Path
    query := r.URL.RawQuery

    parts := []string{cfg.Prefix}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = append(parts, "route", route, "p", path)
    case "method_route":
        parts = append(parts, "method", method, "route", route, "p", path)
    case "method_route_query":
        parts = append(parts, "method", method, "route", route, "p", path, "q", query)
    default: // "route_query"
        parts = append(parts, "route", route, "p", path, "q", query)
    }

    tail := strings.Join(parts[1:], ":")
    sum := sha1.Sum([]byte(tail))
    return fmt.Sprintf("%s:%x", parts[0], sum[:])
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:8+len(hdrJSON)], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    var hdr http.Header
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
            return 0, nil, nil, false
        }
    } else {
        hdr = make(http.Header)
    }
    return status, hdr, bs[8+hlen:], true
}

// per-request headers that must not be replayed from the cache
var skipOnReplay = map[string]bool{
    "Content-Length": true,
    "X-Request-Id":   true,
    "X-Cache":        true,
}

// ResponseCache caches successful responses of the routes it wraps, headers
// and body together so a hit is byte-identical to the original. It must
// only wrap unauthenticated routes whose content does not depend on task
// visibility: nothing here varies by caller.
//
// Every key carries a generation number kept in Redis. Invalidate bumps it,
// so entries written before a mutation are never read after it. With
// caching disabled or no Redis client the cache is a pass-through.
type ResponseCache struct {
    cfg     config.CacheConfig
    rdb     *redis.Client
    logger  *slog.Logger
    ttl     time.Duration
    maxBody int64
}

func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, logger *slog.Logger) *ResponseCache {
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 30 * time.Second
    }
    return &ResponseCache{cfg: cfg, rdb: rdb, logger: logger, ttl: ttl, maxBody: int64(cfg.MaxBodyBytes)}
}

func (rc *ResponseCache) enabled() bool { return rc != nil && rc.cfg.Enabled && rc.rdb != nil }

func (rc *ResponseCache) generationKey() string { return rc.cfg.Prefix + ":gen" }

// generation returns the current generation; a missing counter is 0.
func (rc *ResponseCache) generation(ctx context.Context) (int64, error) {
    n, err := rc.rdb.Get(ctx, rc.generationKey()).Int64()
    if err == redis.Nil {
        return 0, nil
    }
    return n, err
}

// Invalidate makes every cached response stale. Failures are logged; the
// caller's mutation has already happened and must not be reported as failed.
func (rc *ResponseCache) Invalidate(ctx context.Context) {
    if !rc.enabled() {
        return
    }
    if err := rc.rdb.Incr(ctx, rc.generationKey()).Err(); err != nil {
        rc.logger.Error("cache invalidate failed", slog.String("error", err.Error()))
    }
}

// Handle is the Echo middleware.
func (rc *ResponseCache) Handle(next echo.HandlerFunc) echo.HandlerFunc {
    if !rc.enabled() {
        return next
    }
    return func(c echo.Context) error {
        if !rc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
            return next(c)
        }

        ctx := c.Request().Context()
        gen, err := rc.generation(ctx)
        if err != nil {
            // without the generation a hit could be stale
            rc.logger.Warn("cache generation read failed", slog.String("error", err.Error()))
            return next(c)
        }
        key := fmt.Sprintf("%s:g%d", cacheKeyFrom(rc.cfg, c), gen)

        if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
            if status, hdr, body, ok := decodePayload(bs); ok {
                for k, vals := range hdr {
                    if skipOnReplay[http.CanonicalHeaderKey(k)] {
                        continue
                    }
                    for _, v := range vals {
                        c.Response().Header().Add(k, v)
                    }
                }
                c.Response().Header().Set("X-Cache", "HIT")
                c.Response().WriteHeader(status)
                if len(body) > 0 {
                    _, _ = c.Response().Write(body)
                }
                return nil
            }
        } else if err != redis.Nil {
            rc.logger.Warn("cache read failed", slog.String("error", err.Error()))
        }

        cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: rc.maxBody}
        c.Response().Writer = cw
        c.Response().Header().Set("X-Cache", "MISS")

        if err := next(c); err != nil {
            return err
        }

        if cw.status != http.StatusOK || cw.overflowed() {
            return nil
        }
        hdr := make(http.Header, len(c.Response().Header()))
        for k, vals := range c.Response().Header() {
            hdr[k] = append([]string(nil), vals...)
        }
        payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
        if err != nil {
            return nil
        }
        if err := rc.rdb.SetEx(context.Background(), key, payload, rc.ttl).Err(); err != nil {
            rc.logger.Warn("cache write failed", slog.String("error", err.Error()))
        }
        return nil
    }
}
