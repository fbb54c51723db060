package session

import "errors"

// ErrUnauthenticated reports that a credential token does not resolve to a
// user. Missing, malformed, unknown, and expired tokens are deliberately
// indistinguishable so a probing client learns nothing about which tokens
// exist.
var ErrUnauthenticated = errors.New("unauthenticated")

// Store issues, resolves, and revokes opaque session tokens, independent
// of the storage mechanism behind it.
type Store interface {
	// Issue creates a session for the user and returns its token.
	Issue(userID string) (string, error)

	// Authenticate resolves a token to the user identifier it was issued
	// for, or fails with ErrUnauthenticated.
	Authenticate(token string) (string, error)

	// Revoke invalidates a token. Subsequent Authenticate calls with the
	// same token fail with ErrUnauthenticated.
	Revoke(token string) error

	// Close closes the store.
	Close() error
}
