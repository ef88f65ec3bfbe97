package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for store operations.
var (
	// ErrSessionNotFound is returned when a session doesn't exist or has
	// already been swept.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreUnavailable marks a transient backend fault. Callers retry a
	// bounded number of times; it never means the session is invalid.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Store is the concurrent-safe authority for session state, keyed so that
// each subject holds at most one active session.
// Implementations: sharded in-memory (default), Redis.
type Store interface {
	// GetOrCreate atomically returns the subject's existing session when it
	// is still valid, or replaces it with a fresh one expiring at now+ttl.
	// A revoked or expired prior session is superseded, never resurrected.
	// Free of lost-update races under concurrent calls for the same subject.
	GetOrCreate(ctx context.Context, subjectID string, ttl time.Duration) (*Session, error)

	// Get retrieves a session by ID regardless of validity, so callers can
	// distinguish revoked from expired. Returns ErrSessionNotFound when the
	// record is absent.
	Get(ctx context.Context, id string) (*Session, error)

	// Touch updates LastSeenAt. A no-op when the session is absent.
	Touch(ctx context.Context, id string) error

	// Revoke sets the revoked flag. Idempotent; ErrSessionNotFound when the
	// record is absent.
	Revoke(ctx context.Context, id string) error

	// IsValid reports whether the session exists, is not revoked, and has
	// not expired.
	IsValid(ctx context.Context, id string) (bool, error)

	// Delete removes a session record (explicit logout).
	Delete(ctx context.Context, id string) error

	// Sweep removes every session with ExpiresAt <= now and returns the
	// number removed. Valid sessions are never touched.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// NewID creates a cryptographically random session ID, 64 hex characters.
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// New builds a session record for subjectID valid for ttl from now.
func New(subjectID string, ttl time.Duration) (*Session, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Session{
		ID:         id,
		SubjectID:  subjectID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		LastSeenAt: now,
	}, nil
}
