package session

import (
	"testing"
	"time"
)

func TestNewID(t *testing.T) {
	a, err := NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if len(a) != 64 {
		t.Errorf("NewID() length = %d, want 64", len(a))
	}
	b, err := NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if a == b {
		t.Error("NewID() returned duplicate IDs")
	}
}

func TestNewSession(t *testing.T) {
	sess, err := New("user-1", time.Hour)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if sess.SubjectID != "user-1" {
		t.Errorf("SubjectID = %q, want %q", sess.SubjectID, "user-1")
	}
	if got := sess.ExpiresAt.Sub(sess.CreatedAt); got != time.Hour {
		t.Errorf("lifetime = %v, want %v", got, time.Hour)
	}
	if sess.Revoked {
		t.Error("new session should not be revoked")
	}
	if !sess.LastSeenAt.Equal(sess.CreatedAt) {
		t.Errorf("LastSeenAt = %v, want %v", sess.LastSeenAt, sess.CreatedAt)
	}
}

func TestIsExpiredBoundary(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sess := &Session{
		ID:        "s",
		SubjectID: "user-1",
		CreatedAt: created,
		ExpiresAt: created.Add(time.Hour),
	}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "at creation", at: created, want: false},
		{name: "one second before expiry", at: created.Add(time.Hour - time.Second), want: false},
		{name: "exactly at expiry", at: created.Add(time.Hour), want: true},
		{name: "one second after expiry", at: created.Add(time.Hour + time.Second), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sess.IsExpired(tt.at); got != tt.want {
				t.Errorf("IsExpired(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	live := &Session{ExpiresAt: now.Add(time.Minute)}
	if !live.IsValid(now) {
		t.Error("live session reported invalid")
	}

	revoked := &Session{ExpiresAt: now.Add(time.Minute), Revoked: true}
	if revoked.IsValid(now) {
		t.Error("revoked session reported valid even though unexpired")
	}

	expired := &Session{ExpiresAt: now.Add(-time.Minute)}
	if expired.IsValid(now) {
		t.Error("expired session reported valid")
	}
}
