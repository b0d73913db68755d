package middleware

import (
    "context"
    "encoding/json"
    "errors"
    "io"
    "log/slog"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/task-manager/internal/auth"
    "github.com/iliyamo/task-manager/internal/model"
    "github.com/iliyamo/task-manager/internal/repository"
)

// spyVerifier records every token it is asked to verify.
type spyVerifier struct {
    calls []string
    p     auth.Principal
    err   error
}

func (s *spyVerifier) Verify(token string) (auth.Principal, error) {
    s.calls = append(s.calls, token)
    return s.p, s.err
}

type stubAccounts struct {
    acc model.Account
    err error
}

func (s stubAccounts) GetByID(context.Context, uint64) (model.Account, error) { return s.acc, s.err }

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func serve(g *Guard, header string) (*httptest.ResponseRecorder, bool) {
    e := echo.New()
    reached := false
    h := g.Authenticate(func(c echo.Context) error {
        reached = true
        p, ok := PrincipalFrom(c)
        if !ok {
            return errors.New("principal missing")
        }
        if _, ok := PrincipalFromContext(c.Request().Context()); !ok {
            return errors.New("principal missing from request context")
        }
        return c.JSON(http.StatusOK, echo.Map{"sub": p.SubjectID})
    })
    req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
    if header != "" {
        req.Header.Set(echo.HeaderAuthorization, header)
    }
    rec := httptest.NewRecorder()
    if err := h(e.NewContext(req, rec)); err != nil {
        rec.Code = http.StatusInternalServerError
    }
    return rec, reached
}

func assertRejected(t *testing.T, rec *httptest.ResponseRecorder, reached bool) {
    t.Helper()
    assert.False(t, reached)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
    assert.JSONEq(t, `{"error":"unauthenticated"}`, rec.Body.String())
}

func TestGuard_WrongSchemeNeverReachesVerifier(t *testing.T) {
    spy := &spyVerifier{p: auth.Principal{SubjectID: 1}}
    g := NewGuard(spy, stubAccounts{acc: model.Account{ID: 1, Active: true}}, discardLogger())

    for _, h := range []string{
        "Token abc123",
        "",
        "bearer abc123",
        "BEARER abc123",
        "Bearer",
        "Bearer ",
        "Bearer  abc123",
        "Bearer abc 123",
        "Basic dXNlcjpwYXNz",
    } {
        rec, reached := serve(g, h)
        assertRejected(t, rec, reached)
    }
    assert.Empty(t, spy.calls)
}

func TestGuard_InvalidToken(t *testing.T) {
    spy := &spyVerifier{err: auth.ErrTokenInvalid}
    g := NewGuard(spy, stubAccounts{acc: model.Account{ID: 1, Active: true}}, discardLogger())

    rec, reached := serve(g, "Bearer abc123")
    assertRejected(t, rec, reached)
    assert.Equal(t, []string{"abc123"}, spy.calls)
}

func TestGuard_AccountStates(t *testing.T) {
    valid := &spyVerifier{p: auth.Principal{SubjectID: 1}}
    cases := map[string]stubAccounts{
        "missing":  {err: repository.ErrNotFound},
        "inactive": {acc: model.Account{ID: 1, Active: false}},
        "backend":  {err: errors.New("connection refused")},
    }
    for name, accounts := range cases {
        t.Run(name, func(t *testing.T) {
            rec, reached := serve(NewGuard(valid, accounts, discardLogger()), "Bearer abc123")
            assertRejected(t, rec, reached)
            assert.NotContains(t, rec.Body.String(), "connection")
        })
    }
}

func TestGuard_Authenticated(t *testing.T) {
    g := NewGuard(&spyVerifier{p: auth.Principal{SubjectID: 7, Email: "a@example.com"}},
        stubAccounts{acc: model.Account{ID: 7, Active: true}}, discardLogger())

    rec, reached := serve(g, "Bearer abc.def.ghi")
    require.True(t, reached)
    assert.Equal(t, http.StatusOK, rec.Code)
    var body map[string]uint64
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
    assert.Equal(t, uint64(7), body["sub"])
}

func TestBearerToken(t *testing.T) {
    tok, ok := bearerToken("Bearer abc.def")
    assert.True(t, ok)
    assert.Equal(t, "abc.def", tok)

    _, ok = bearerToken("Bearer\tabc")
    assert.False(t, ok)
}
