package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/task-manager/internal/middleware"
    "github.com/iliyamo/task-manager/internal/service"
)

// AuthHandler serves registration, login and the current-account view.
type AuthHandler struct {
    Accounts *service.AccountService
}

func NewAuthHandler(accounts *service.AccountService) *AuthHandler {
    return &AuthHandler{Accounts: accounts}
}

// ----- DTOs -----

type registerReq struct {
    Name     string `json:"name" validate:"required,max=120"`
    Email    string `json:"email" validate:"required,email,max=255"`
    Password string `json:"password" validate:"required,min=6,max=30"`
}

type loginReq struct {
    Email    string `json:"email" validate:"required"`
    Password string `json:"password" validate:"required"`
}

type loginResp struct {
    ID      uint64    `json:"id"`
    Name    string    `json:"name"`
    Email   string    `json:"email"`
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}

// Register creates an account. The response never carries the hash.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if err := c.Validate(&req); err != nil {
        return fail(c, err, "")
    }

    ctx, cancel := withTimeout(c)
    defer cancel()

    acc, err := h.Accounts.Register(ctx, service.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password})
    if err != nil {
        return fail(c, err, "user")
    }
    return c.JSON(http.StatusCreated, acc)
}

// Login verifies credentials and returns a token. Every failure is the same
// 401 "invalid credentials".
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if err := c.Validate(&req); err != nil {
        return fail(c, err, "")
    }

    ctx, cancel := withTimeout(c)
    defer cancel()

    res, err := h.Accounts.Login(ctx, req.Email, req.Password)
    if err != nil {
        return fail(c, err, "user")
    }
    return c.JSON(http.StatusOK, loginResp{
        ID:      res.Account.ID,
        Name:    res.Account.Name,
        Email:   res.Account.Email,
        Token:   res.Token.Token,
        Expires: res.Token.ExpiresAt,
    })
}

// Me returns the authenticated principal and its account.
func (h *AuthHandler) Me(c echo.Context) error {
    p, ok := principal(c)
    if !ok {
        return unauthenticated(c)
    }
    acc, _ := middleware.AccountFrom(c)
    return c.JSON(http.StatusOK, echo.Map{"principal": p, "user": acc})
}
