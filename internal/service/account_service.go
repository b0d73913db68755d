// Package service holds the business operations behind the HTTP handlers.
// Every mutating operation looks the resource up first (NotFound), then
// applies the ownership policy (Forbidden), then writes.
package service

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/iliyamo/task-manager/internal/auth"
	"github.com/iliyamo/task-manager/internal/model"
	"github.com/iliyamo/task-manager/internal/query"
	"github.com/iliyamo/task-manager/internal/repository"
)

// AccountStore is the persistence the account service needs.
type AccountStore interface {
	query.Source[model.Account]
	Create(ctx context.Context, a *model.Account) error
	GetByID(ctx context.Context, id uint64) (model.Account, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	Update(ctx context.Context, a *model.Account) error
	SetAvatar(ctx context.Context, id uint64, key string) error
	Delete(ctx context.Context, id uint64) error
}

// AvatarStore keeps avatar images.
type AvatarStore interface {
	SaveAvatar(ctx context.Context, accountID uint64, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// ListingCache is told whenever cached account listings may have changed.
type ListingCache interface {
	Invalidate(ctx context.Context)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(plain, hash string) bool
}

// TokenIssuer mints identity tokens after a successful login.
type TokenIssuer interface {
	Issue(subjectID uint64, email string) (auth.IssuedToken, error)
}

// RegisterInput is a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AccountPatch lists the account fields to change; nil means unchanged.
type AccountPatch struct {
	Name     *string
	Email    *string
	Password *string
}

// LoginResult is the account and its fresh token.
type LoginResult struct {
	Account model.Account
	Token   auth.IssuedToken
}

// AccountService registers, authenticates and manages accounts.
type AccountService struct {
	accounts AccountStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	avatars  AvatarStore
	cache    ListingCache
	logger   *slog.Logger
	// compared against when the email is unknown so both paths cost a bcrypt
	dummyHash string
}

// AccountOption customizes an AccountService.
type AccountOption func(*AccountService)

// WithAvatars enables avatar uploads.
func WithAvatars(store AvatarStore) AccountOption {
	return func(s *AccountService) { s.avatars = store }
}

// WithListingCache invalidates c after every account mutation.
func WithListingCache(c ListingCache) AccountOption {
	return func(s *AccountService) { s.cache = c }
}

// WithLogger sets the logger for best-effort cleanup failures.
func WithLogger(logger *slog.Logger) AccountOption {
	return func(s *AccountService) { s.logger = logger }
}

func NewAccountService(accounts AccountStore, hasher PasswordHasher, tokens TokenIssuer, opts ...AccountOption) (*AccountService, error) {
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, err
	}
	s := &AccountService{accounts: accounts, hasher: hasher, tokens: tokens, logger: slog.Default(), dummyHash: dummy}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates an active account. A taken email is ErrConflict.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (model.Account, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return model.Account{}, errors.Wrap(err, "hash password")
	}
	a := model.Account{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.accounts.Create(ctx, &a); err != nil {
		return model.Account{}, err
	}
	s.invalidate(ctx)
	return a, nil
}

// Login verifies credentials and issues a token. Unknown email, inactive
// account and wrong password all yield auth.ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	a, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.hasher.Compare(password, s.dummyHash)
		return LoginResult{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if !s.hasher.Compare(password, a.PasswordHash) || !a.Active {
		return LoginResult{}, auth.ErrInvalidCredentials
	}
	tok, err := s.tokens.Issue(a.ID, a.Email)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "issue token")
	}
	return LoginResult{Account: a, Token: tok}, nil
}

// Get returns an account or repository.ErrNotFound.
func (s *AccountService) Get(ctx context.Context, id uint64) (model.Account, error) {
	return s.accounts.GetByID(ctx, id)
}

// List pages through accounts, optionally searching name or email.
func (s *AccountService) List(ctx context.Context, f query.UserFilter, page query.Page) (query.Result[model.PublicAccount], error) {
	res, err := query.Run[model.Account](ctx, s.accounts, f.Apply(query.AllUsers()), page)
	if err != nil {
		return query.Result[model.PublicAccount]{}, err
	}
	out := query.Result[model.PublicAccount]{Data: make([]model.PublicAccount, 0, len(res.Data)), Meta: res.Meta}
	for _, a := range res.Data {
		out.Data = append(out.Data, a.Public())
	}
	return out, nil
}

// UpdateSelf changes the caller's own account.
func (s *AccountService) UpdateSelf(ctx context.Context, p auth.Principal, id uint64, patch AccountPatch) (model.Account, error) {
	a, err := s.ownedAccount(ctx, p, id)
	if err != nil {
		return model.Account{}, err
	}
	if patch.Name != nil {
		a.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		a.Email = strings.TrimSpace(*patch.Email)
	}
	if patch.Password != nil {
		hash, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return model.Account{}, errors.Wrap(err, "hash password")
		}
		a.PasswordHash = hash
	}
	if err := s.accounts.Update(ctx, &a); err != nil {
		return model.Account{}, err
	}
	s.invalidate(ctx)
	return a, nil
}

// DeleteSelf removes the caller's own account, all of its tasks and its
// avatar.
func (s *AccountService) DeleteSelf(ctx context.Context, p auth.Principal, id uint64) error {
	a, err := s.ownedAccount(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.accounts.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	if a.Avatar != nil {
		s.dropAvatar(ctx, *a.Avatar)
	}
	return nil
}

// UploadAvatar stores r as the caller's avatar and removes the previous one.
func (s *AccountService) UploadAvatar(ctx context.Context, p auth.Principal, filename string, r io.Reader) (model.Account, error) {
	if s.avatars == nil {
		return model.Account{}, errors.New("avatar storage not configured")
	}
	a, err := s.accounts.GetByID(ctx, p.SubjectID)
	if err != nil {
		return model.Account{}, err
	}
	key, err := s.avatars.SaveAvatar(ctx, a.ID, filename, r)
	if err != nil {
		return model.Account{}, err
	}
	if err := s.accounts.SetAvatar(ctx, a.ID, key); err != nil {
		s.dropAvatar(ctx, key)
		return model.Account{}, err
	}
	s.invalidate(ctx)
	if old := a.Avatar; old != nil && *old != "" {
		s.dropAvatar(ctx, *old)
	}
	a.Avatar = &key
	return a, nil
}

func (s *AccountService) ownedAccount(ctx context.Context, p auth.Principal, id uint64) (model.Account, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return model.Account{}, err
	}
	if !auth.Allows(p.SubjectID, a.ID) {
		return model.Account{}, ErrForbidden
	}
	return a, nil
}

func (s *AccountService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func (s *AccountService) dropAvatar(ctx context.Context, key string) {
	if s.avatars == nil {
		return
	}
	if err := s.avatars.Delete(ctx, key); err != nil {
		s.logger.Warn("remove avatar failed", slog.String("key", key), slog.String("error", errors.Cause(err).Error()))
	}
}
