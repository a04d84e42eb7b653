package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

const bearerPrefix = "Bearer "

// ErrSecretNotConfigured means no admin secret was provided at construction.
// Callers must report it as a server misconfiguration, not as a rejected token.
var ErrSecretNotConfigured = errors.New("ADMIN_PASSWORD not configured")

// Verifier checks bearer tokens against a single shared admin secret.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier for secret. An empty secret yields a
// Verifier whose Authorize always reports ErrSecretNotConfigured.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Configured reports whether a secret is set.
func (v *Verifier) Configured() bool {
	return v != nil && len(v.secret) > 0
}

// Authorize reports whether header is exactly "Bearer <secret>". The prefix
// is case-sensitive and the token is compared in constant time.
func (v *Verifier) Authorize(header string) (bool, error) {
	if !v.Configured() {
		return false, ErrSecretNotConfigured
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return false, nil
	}
	token := []byte(header[len(bearerPrefix):])
	return subtle.ConstantTimeCompare(token, v.secret) == 1, nil
}
