package middleware

import (
    "context"
    "net/http"
    "net/http/httptest"
    "strconv"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/task-manager/internal/config"
)

func TestPayloadRoundTrip(t *testing.T) {
    hdr := http.Header{"Content-Type": {"application/json"}}
    bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"data":[]}`))
    require.NoError(t, err)

    status, gotHdr, body, ok := decodePayload(bs)
    require.True(t, ok)
    assert.Equal(t, http.StatusOK, status)
    assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
    assert.Equal(t, `{"data":[]}`, string(body))

    _, _, _, ok = decodePayload(bs[:5])
    assert.False(t, ok)
    _, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0})
    assert.False(t, ok, "header length beyond payload")
}

func keyFor(t *testing.T, cfg config.CacheConfig, target string) string {
    t.Helper()
    e := echo.New()
    c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
    c.SetPath("/v1/users/:id/public-tasks")
    return cacheKeyFrom(cfg, c)
}

func TestCacheKeyFrom(t *testing.T) {
    cfg := config.CacheConfig{Prefix: "tm:cache", KeyStrategy: "route_query"}

    a := keyFor(t, cfg, "/v1/users/1/public-tasks?page=1")
    assert.Regexp(t, `^tm:cache:[0-9a-f]{40}$`, a)
    assert.Equal(t, a, keyFor(t, cfg, "/v1/users/1/public-tasks?page=1"))
    assert.NotEqual(t, a, keyFor(t, cfg, "/v1/users/2/public-tasks?page=1"))
    assert.NotEqual(t, a, keyFor(t, cfg, "/v1/users/1/public-tasks?page=2"))

    cfg.KeyStrategy = "route"
    assert.Equal(t, keyFor(t, cfg, "/v1/users/1/public-tasks?page=1"), keyFor(t, cfg, "/v1/users/1/public-tasks?page=2"))
}

func TestCaptureWriter_Overflow(t *testing.T) {
    rec := httptest.NewRecorder()
    cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
    _, _ = cw.Write([]byte("abc"))
    assert.False(t, cw.overflowed())
    _, _ = cw.Write([]byte("de"))
    assert.True(t, cw.overflowed())
    assert.Equal(t, "abcde", rec.Body.String())
}

func TestResponseCache_DisabledPassesThrough(t *testing.T) {
    rc := NewResponseCache(config.CacheConfig{Enabled: true}, nil, discardLogger())
    e := echo.New()
    rec := httptest.NewRecorder()
    c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/users", nil), rec)
    err := rc.Handle(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })(c)
    require.NoError(t, err)
    assert.Equal(t, "ok", rec.Body.String())
    assert.Empty(t, rec.Header().Get("X-Cache"))

    // nil-safe for services wired without Redis
    var none *ResponseCache
    none.Invalidate(context.Background())
}

func newTestCache(t *testing.T, maxBody int) (*ResponseCache, *miniredis.Miniredis) {
    t.Helper()
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })
    cfg := config.CacheConfig{
        Enabled:      true,
        Methods:      map[string]bool{http.MethodGet: true},
        TTL:          time.Minute,
        KeyStrategy:  "route_query",
        Prefix:       "tm:test",
        MaxBodyBytes: maxBody,
    }
    return NewResponseCache(cfg, rdb, discardLogger()), mr
}

// countingServer mounts one cached GET route that answers status/body and
// counts how often the handler really ran.
func countingServer(rc *ResponseCache, status *int, body *string) (*echo.Echo, *int) {
    calls := 0
    e := echo.New()
    h := func(c echo.Context) error {
        calls++
        c.Response().Header().Set(echo.HeaderXRequestID, "req-"+strconv.Itoa(calls))
        return c.JSONBlob(*status, []byte(*body))
    }
    e.GET("/v1/users", h, rc.Handle)
    e.POST("/v1/users", h, rc.Handle)
    return e, &calls
}

func get(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
    return rec
}

func TestResponseCache_MissThenHit(t *testing.T) {
    rc, _ := newTestCache(t, 1<<20)
    status, body := http.StatusOK, `{"data":[1]}`
    e, calls := countingServer(rc, &status, &body)

    first := get(e, http.MethodGet, "/v1/users?page=1")
    assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
    assert.Equal(t, "req-1", first.Header().Get(echo.HeaderXRequestID))

    body = `{"data":[2]}`
    second := get(e, http.MethodGet, "/v1/users?page=1")
    assert.Equal(t, 1, *calls)
    assert.Equal(t, http.StatusOK, second.Code)
    assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
    assert.Equal(t, `{"data":[1]}`, second.Body.String())
    assert.Equal(t, first.Header().Get(echo.HeaderContentType), second.Header().Get(echo.HeaderContentType))
    assert.Empty(t, second.Header().Get(echo.HeaderXRequestID), "per-request headers are not replayed")

    other := get(e, http.MethodGet, "/v1/users?page=2")
    assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
    assert.Equal(t, 2, *calls)
}

func TestResponseCache_SkipsNon200AndOversized(t *testing.T) {
    rc, _ := newTestCache(t, 8)
    status, body := http.StatusNotFound, `{"error":"user not found"}`
    e, calls := countingServer(rc, &status, &body)

    get(e, http.MethodGet, "/v1/users")
    get(e, http.MethodGet, "/v1/users")
    assert.Equal(t, 2, *calls, "error responses are not cached")

    status = http.StatusOK
    rec := get(e, http.MethodGet, "/v1/users")
    assert.Equal(t, body, rec.Body.String(), "oversized bodies are still served in full")
    get(e, http.MethodGet, "/v1/users")
    assert.Equal(t, 4, *calls, "oversized bodies are not cached")

    get(e, http.MethodPost, "/v1/users")
    get(e, http.MethodPost, "/v1/users")
    assert.Equal(t, 6, *calls, "only configured methods are cached")
}

func TestResponseCache_InvalidateDropsEarlierEntries(t *testing.T) {
    rc, _ := newTestCache(t, 1<<20)
    status, body := http.StatusOK, `{"data":["before"]}`
    e, calls := countingServer(rc, &status, &body)

    get(e, http.MethodGet, "/v1/users")
    assert.Equal(t, "HIT", get(e, http.MethodGet, "/v1/users").Header().Get("X-Cache"))

    body = `{"data":["after"]}`
    rc.Invalidate(context.Background())

    rec := get(e, http.MethodGet, "/v1/users")
    assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
    assert.Equal(t, body, rec.Body.String())
    assert.Equal(t, 2, *calls)
    assert.Equal(t, body, get(e, http.MethodGet, "/v1/users").Body.String())
}

func TestResponseCache_RedisDownPassesThrough(t *testing.T) {
    rc, mr := newTestCache(t, 1<<20)
    status, body := http.StatusOK, `{"data":[]}`
    e, calls := countingServer(rc, &status, &body)

    mr.Close()
    rec := get(e, http.MethodGet, "/v1/users")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, body, rec.Body.String())
    get(e, http.MethodGet, "/v1/users")
    assert.Equal(t, 2, *calls)
    rc.Invalidate(context.Background())
}
