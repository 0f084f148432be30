// Package user provides the credential and session-token models and their
// PostgreSQL repository.
package user

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// User is a credential record. Created at initialization (seed record) or
// by an out-of-scope registration path; read-only here.
type User struct {
	ID           int
	Username     string
	Email        string
	PasswordHash string
}

// SessionToken is issued once per successful authentication and never
// updated. Expiry enforcement is out of scope; the row only records the
// window.
type SessionToken struct {
	ID        int
	UserID    int
	Token     string
	ExpiresAt time.Time
}

// Repository defines the datastore operations the authentication
// transaction needs.
type Repository interface {
	// GetByUsername returns the user with the given username, or
	// ErrNotFound.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// InsertToken persists a session token for the user. The 1-hour
	// expiry window is computed at the storage layer.
	InsertToken(ctx context.Context, userID int, token string) (*SessionToken, error)
}
