package auth

import "time"

// Principal is the verified identity of one request, rebuilt from the token
// claims on every request and never stored.
type Principal struct {
	SubjectID uint64    `json:"sub"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
	Audience  string    `json:"aud"`
	Issuer    string    `json:"iss"`
}
