package middleware

// identity.go carries the authenticated principal and account from the
// guard to handlers, both on the Echo context and on the request's
// context.Context so services and loggers can read it too.

import (
    "context"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/task-manager/internal/auth"
    "github.com/iliyamo/task-manager/internal/model"
)

const (
    principalKey = "principal"
    accountKey   = "account"
)

type principalCtxKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
    return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
    p, ok := ctx.Value(principalCtxKey{}).(auth.Principal)
    return p, ok
}

// PrincipalFrom returns the principal the guard attached to c. It is only
// false on routes registered without the guard.
func PrincipalFrom(c echo.Context) (auth.Principal, bool) {
    p, ok := c.Get(principalKey).(auth.Principal)
    return p, ok
}

// AccountFrom returns the account the guard resolved for c.
func AccountFrom(c echo.Context) (model.Account, bool) {
    a, ok := c.Get(accountKey).(model.Account)
    return a, ok
}

// setIdentity stores principal and account on both contexts.
func setIdentity(c echo.Context, p auth.Principal, a model.Account) {
    c.Set(principalKey, p)
    c.Set(accountKey, a)
    c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
}

// userID identifies the caller for logging: the subject id, or "guest".
func userID(c echo.Context) string {
    if p, ok := PrincipalFrom(c); ok {
        return formatUint(p.SubjectID)
    }
    return "guest"
}
