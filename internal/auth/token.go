package auth

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/iliyamo/task-manager/internal/config"
)

// Claims is the signed payload: {sub:int, email, iat, exp, aud:string, iss}.
// It implements jwt.Claims so the parser can validate the registered claims.
type Claims struct {
	Subject   uint64 `json:"sub"`
	Email     string `json:"email"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	Audience  string `json:"aud"`
	Issuer    string `json:"iss"`
}

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c Claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }

func (c Claims) GetIssuer() (string, error) { return c.Issuer, nil }

func (c Claims) GetSubject() (string, error) {
	return strconv.FormatUint(c.Subject, 10), nil
}

func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	return jwt.ClaimStrings{c.Audience}, nil
}

// IssuedToken is a signed token and the instant it stops being valid.
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires"`
}

// TokenService issues and verifies HS256 identity tokens. The configuration
// is copied at construction and never changes afterwards.
type TokenService struct {
	cfg    config.JWTConfig
	now    func() time.Time
	parser *jwt.Parser
	logger *slog.Logger
}

// Option customizes a TokenService.
type Option func(*TokenService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService builds a token service from an immutable JWT config.
func NewTokenService(cfg config.JWTConfig, logger *slog.Logger, opts ...Option) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret must be provided")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("jwt ttl must be positive")
	}
	s := &TokenService{cfg: cfg, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(cfg.Audience),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s, nil
}

// Issue signs a token for the account with the configured lifetime.
func (s *TokenService) Issue(subjectID uint64, email string) (IssuedToken, error) {
	return s.IssueWithTTL(subjectID, email, s.cfg.TTL)
}

// IssueWithTTL signs a token valid for [now, now+ttl).
func (s *TokenService) IssueWithTTL(subjectID uint64, email string, ttl time.Duration) (IssuedToken, error) {
	if subjectID == 0 {
		return IssuedToken{}, errors.New("subject id must be non-zero")
	}
	if ttl < time.Second {
		return IssuedToken{}, errors.New("ttl must be at least one second")
	}
	iat := s.now().UTC().Truncate(time.Second)
	exp := iat.Add(ttl.Truncate(time.Second))
	claims := Claims{
		Subject:   subjectID,
		Email:     email,
		IssuedAt:  iat.Unix(),
		ExpiresAt: exp.Unix(),
		Audience:  s.cfg.Audience,
		Issuer:    s.cfg.Issuer,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return IssuedToken{}, errors.Wrap(err, "sign token")
	}
	return IssuedToken{Token: signed, ExpiresAt: exp}, nil
}

// Verify checks signature, algorithm, validity window, audience, issuer and
// subject. Every failure is reported as ErrTokenInvalid; the reason is only
// logged at debug level.
func (s *TokenService) Verify(token string) (Principal, error) {
	var claims Claims
	_, err := s.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.Secret), nil
	})
	if err == nil && claims.Subject == 0 {
		err = errors.New("missing subject")
	}
	if err == nil && claims.IssuedAt <= 0 {
		err = errors.New("missing issued-at")
	}
	if err != nil {
		s.logger.Debug("token rejected", slog.String("reason", err.Error()))
		return Principal{}, ErrTokenInvalid
	}
	return Principal{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		IssuedAt:  time.Unix(claims.IssuedAt, 0).UTC(),
		ExpiresAt: time.Unix(claims.ExpiresAt, 0).UTC(),
		Audience:  claims.Audience,
		Issuer:    claims.Issuer,
	}, nil
}
