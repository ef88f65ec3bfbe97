// Package user contains the domain types and password handling for the
// registration and login glue. The authentication core never sees password
// material; it references users only by subject ID.
package user

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for user store operations.
var (
	// ErrUserNotFound is returned when a user doesn't exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when registration collides with an
	// existing username.
	ErrUsernameTaken = errors.New("username already exists")
)

// User is a registered account.
type User struct {
	// ID is the unique subject identifier (UUID).
	ID string
	// Username is the unique login name.
	Username string
	// Email is the contact address supplied at registration.
	Email string
	// PasswordHash is the Argon2id PHC-format hash. Never the raw password.
	PasswordHash string
	// CreatedAt is when the account was created (UTC).
	CreatedAt time.Time
}

// Store provides user persistence.
// This interface is defined in the domain to avoid circular imports.
// Implementations: SQLite (prod), in-memory (dev/test).
type Store interface {
	// Create persists a new user. Returns ErrUsernameTaken when the
	// username is already registered.
	Create(ctx context.Context, u *User) error

	// GetByUsername retrieves a user by login name.
	// Returns ErrUserNotFound when absent.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID retrieves a user by subject ID.
	// Returns ErrUserNotFound when absent.
	GetByID(ctx context.Context, id string) (*User, error)
}
