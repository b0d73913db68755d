package middleware

import (
    "context"
    "log/slog"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/pkg/errors"

    "github.com/iliyamo/task-manager/internal/auth"
    "github.com/iliyamo/task-manager/internal/model"
    "github.com/iliyamo/task-manager/internal/repository"
)

// TokenVerifier checks a raw token and returns its principal.
type TokenVerifier interface {
    Verify(token string) (auth.Principal, error)
}

// AccountLookup resolves an account by id, fresh on every request.
type AccountLookup interface {
    GetByID(ctx context.Context, id uint64) (model.Account, error)
}

// unauthenticated is the only body a rejected request ever sees.
var unauthenticated = echo.Map{"error": "unauthenticated"}

// Guard authenticates requests to protected routes. Every request goes
// header -> token -> account, and any failed step ends it with 401.
type Guard struct {
    tokens   TokenVerifier
    accounts AccountLookup
    logger   *slog.Logger
}

// NewGuard builds a guard around the token service and account store.
func NewGuard(tokens TokenVerifier, accounts AccountLookup, logger *slog.Logger) *Guard {
    return &Guard{tokens: tokens, accounts: accounts, logger: logger}
}

// Authenticate is the Echo middleware. On success the principal and
// account are available through PrincipalFrom and AccountFrom.
func (g *Guard) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
    return func(c echo.Context) error {
        raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
        if !ok {
            return g.reject(c, "malformed or missing authorization header", nil)
        }

        p, err := g.tokens.Verify(raw)
        if err != nil {
            return g.reject(c, "token rejected", nil)
        }

        acc, err := g.accounts.GetByID(c.Request().Context(), p.SubjectID)
        switch {
        case errors.Is(err, repository.ErrNotFound):
            return g.reject(c, "account not found", nil)
        case err != nil:
            return g.reject(c, "account lookup failed", err)
        case !acc.Active:
            return g.reject(c, "account inactive", nil)
        }

        setIdentity(c, p, acc)
        return next(c)
    }
}

// reject answers 401. The reason is logged, never sent; backend errors
// are logged at error level.
func (g *Guard) reject(c echo.Context, reason string, err error) error {
    if err != nil {
        g.logger.Error("guard: "+reason, slog.String("error", err.Error()), slog.String("path", c.Path()))
    } else {
        g.logger.Debug("guard: "+reason, slog.String("path", c.Path()))
    }
    return c.JSON(http.StatusUnauthorized, unauthenticated)
}

// bearerToken parses "Bearer <token>": exact, case-sensitive scheme, one
// space, and a non-empty token with no further whitespace.
func bearerToken(h string) (string, bool) {
    scheme, token, ok := strings.Cut(h, " ")
    if !ok || scheme != "Bearer" || token == "" {
        return "", false
    }
    if strings.ContainsAny(token, " \t\r\n") {
        return "", false
    }
    return token, true
}

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }
