package auth

import "errors"

// ErrTokenInvalid is the only error Verify returns. Expired, tampered,
// malformed and wrong-audience tokens are indistinguishable to callers.
var ErrTokenInvalid = errors.New("token invalid")

// ErrInvalidCredentials is returned by login for an unknown email, an
// inactive account or a wrong password alike.
var ErrInvalidCredentials = errors.New("invalid credentials")
