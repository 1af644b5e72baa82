// Package identity adapts the external identity provider. Accounts are owned
// by the provider; this service only authenticates bearer tokens and looks
// accounts up by email.
package identity

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("missing or invalid identity token")
	ErrAccountNotFound = errors.New("account not found")
)

// Account is the read-only view of an identity provider user.
type Account struct {
	ID    string
	Email string
}

// Provider authenticates callers and resolves accounts.
type Provider interface {
	// Authenticate verifies a bearer token and returns the caller's account.
	// Invalid tokens yield ErrUnauthenticated.
	Authenticate(ctx context.Context, token string) (*Account, error)
	// LookupByEmail finds an account by case-insensitive email. Unknown
	// emails yield ErrAccountNotFound.
	LookupByEmail(ctx context.Context, email string) (*Account, error)
}

// NormalizeEmail lower-cases and trims an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	h := strings.TrimSpace(header)
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
