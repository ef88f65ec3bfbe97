// Package session holds the authoritative record of authenticated grants.
// Tokens and sessions expire independently: the store is the single source
// of truth consulted for the lifetime of every live connection.
package session

import (
	"time"
)

// Session represents one authenticated, currently-valid grant for a subject.
type Session struct {
	// ID is a cryptographically random identifier, 32 bytes hex-encoded.
	ID string
	// SubjectID is the owning user identifier.
	SubjectID string
	// CreatedAt is when the session was created (UTC).
	CreatedAt time.Time
	// ExpiresAt is when the session expires (UTC). Always after CreatedAt.
	ExpiresAt time.Time
	// Revoked marks the session as invalidated. Monotonic: once true it is
	// never reset, regardless of ExpiresAt.
	Revoked bool
	// LastSeenAt is updated on each successful liveness check (UTC).
	LastSeenAt time.Time
}

// IsExpired reports whether the session's validity window has passed at t.
// The window is half-open: the session is expired at exactly ExpiresAt.
func (s *Session) IsExpired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// IsValid reports whether the session is usable at t: present, not revoked,
// and not expired.
func (s *Session) IsValid(t time.Time) bool {
	return !s.Revoked && !s.IsExpired(t)
}
