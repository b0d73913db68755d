// Package auth holds the credential hasher, the token service, the
// principal they produce and the ownership policy applied to it.
package auth

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Accepted bcrypt work factors. A cost outside [MinCost, MaxCost] falls back
// to DefaultCost.
const (
	MinCost     = 8
	MaxCost     = 14
	DefaultCost = 10
)

// BcryptHasher hashes and compares passwords with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, clamped to the default when
// out of range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < MinCost || cost > MaxCost {
		cost = DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Cost returns the effective work factor.
func (h *BcryptHasher) Cost() int { return h.cost }

// Hash returns a salted bcrypt hash of plain.
func (h *BcryptHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", errors.Wrap(err, "bcrypt hash")
	}
	return string(b), nil
}

// Compare reports whether plain matches hash. A malformed hash, or any other
// bcrypt error, is a mismatch.
func (h *BcryptHasher) Compare(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
