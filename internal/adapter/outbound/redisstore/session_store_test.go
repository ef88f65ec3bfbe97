package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/chat-gate/chatgate/internal/domain/session"
)

func newTestStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionStore(client), mr
}

func TestGetOrCreateCreatesSession(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if sess.SubjectID != "user-1" {
		t.Errorf("SubjectID = %q, want %q", sess.SubjectID, "user-1")
	}
	if len(sess.ID) != 64 {
		t.Errorf("session ID length = %d, want 64", len(sess.ID))
	}
	if sess.Revoked {
		t.Error("new session should not be revoked")
	}
}

func TestGetOrCreateReturnsSameSessionWhileValid(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	second, err := store.GetOrCreate(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second call created new session %s, want reuse of %s", second.ID, first.ID)
	}
}

func TestGetOrCreateSupersedesRevokedSession(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := store.Revoke(ctx, first.ID); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	second, err := store.GetOrCreate(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if second.ID == first.ID {
		t.Error("revoked session must not be resurrected")
	}
	if _, err := store.Get(ctx, first.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("superseded session Get() error = %v, want ErrSessionNotFound", err)
	}
}

func TestGetRoundTripsFields(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.GetOrCreate(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.SubjectID != created.SubjectID {
		t.Errorf("SubjectID = %q, want %q", got.SubjectID, created.SubjectID)
	}
	if !got.ExpiresAt.Equal(created.ExpiresAt.Truncate(time.Millisecond)) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, created.ExpiresAt)
	}
}

func TestGetUnknownSession(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
	}
}

func TestRevokeIsMonotonic(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := store.Revoke(ctx, sess.ID); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if err := store.Revoke(ctx, sess.ID); err != nil {
		t.Fatalf("second Revoke() error = %v", err)
	}

	valid, err := store.IsValid(ctx, sess.ID)
	if err != nil {
		t.Fatalf("IsValid() error = %v", err)
	}
	if valid {
		t.Error("revoked session reported valid")
	}

	// The record itself survives revocation so callers can distinguish
	// revoked from expired.
	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() after revoke error = %v", err)
	}
	if !got.Revoked {
		t.Error("Revoked flag not persisted")
	}
}

func TestRevokeUnknownSession(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Revoke(context.Background(), "missing")
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Revoke() error = %v, want ErrSessionNotFound", err)
	}
}

func TestTouchUpdatesLastSeen(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	before := sess.LastSeenAt
	time.Sleep(5 * time.Millisecond)
	if err := store.Touch(ctx, sess.ID); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.LastSeenAt.After(before) {
		t.Errorf("LastSeenAt = %v, want after %v", got.LastSeenAt, before)
	}

	// Touching an absent session must not recreate it.
	mr.FlushAll()
	if err := store.Touch(ctx, sess.ID); err != nil {
		t.Fatalf("Touch() on absent session error = %v", err)
	}
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
	}
}

func TestDeleteRemovesSessionAndIndex(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
	}
	if mr.Exists(subjectKey("user-1")) {
		t.Error("subject index entry not removed")
	}

	// Deleting again is a no-op.
	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	expired, err := store.GetOrCreate(ctx, "user-old", time.Millisecond)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	live, err := store.GetOrCreate(ctx, "user-new", time.Hour)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	removed, err := store.Sweep(ctx, time.Now().UTC().Add(time.Second))
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Sweep() removed = %d, want 1", removed)
	}
	if _, err := store.Get(ctx, expired.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expired session Get() error = %v, want ErrSessionNotFound", err)
	}
	if _, err := store.Get(ctx, live.ID); err != nil {
		t.Errorf("live session removed by sweep: %v", err)
	}
}

func TestStoreUnavailableOnConnectionLoss(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	_, err := store.GetOrCreate(context.Background(), "user-1", time.Hour)
	if !errors.Is(err, session.ErrStoreUnavailable) {
		t.Errorf("GetOrCreate() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := store.Get(context.Background(), "any"); !errors.Is(err, session.ErrStoreUnavailable) {
		t.Errorf("Get() error = %v, want ErrStoreUnavailable", err)
	}
}
