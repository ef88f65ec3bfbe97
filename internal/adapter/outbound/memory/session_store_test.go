package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/chat-gate/chatgate/internal/domain/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestSessionStore() *SessionStore {
	return NewSessionStore(nil)
}

func TestGetOrCreateReturnsSameSessionWhileValid(t *testing.T) {
	store := newTestSessionStore()
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
		t.Errorf("second call created %s, want reuse of %s", second.ID, first.ID)
	}
	if store.Size() != 1 {
		t.Errorf("Size() = %d, want 1", store.Size())
	}
}

func TestGetOrCreateIsIdempotentUnderConcurrency(t *testing.T) {
	store := newTestSessionStore()
	ctx := context.Background()

	const workers = 32
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := store.GetOrCreate(ctx, "user-1", time.Hour)
			if err != nil {
				t.Errorf("GetOrCreate() error = %v", err)
				return
			}
			ids[i] = sess.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("worker %d observed session %s, worker 0 observed %s", i, ids[i], ids[0])
		}
	}
	if store.Size() != 1 {
		t.Errorf("Size() = %d, want 1", store.Size())
	}
}

func TestGetOrCreateSupersedesInvalidSession(t *testing.T) {
	store := newTestSessionStore()
	ctx := context.Background()

	t.Run("revoked", func(t *testing.T) {
		first, _ := store.GetOrCreate(ctx, "user-r", time.Hour)
		if err := store.Revoke(ctx, first.ID); err != nil {
			t.Fatalf("Revoke() error = %v", err)
		}
		second, err := store.GetOrCreate(ctx, "user-r", time.Hour)
		if err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}
		if second.ID == first.ID {
			t.Error("revoked session must not be resurrected")
		}
		if _, err := store.Get(ctx, first.ID); !errors.Is(err, session.ErrSessionNotFound) {
			t.Errorf("superseded session Get() error = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		first, _ := store.GetOrCreate(ctx, "user-e", -time.Second)
		second, err := store.GetOrCreate(ctx, "user-e", time.Hour)
		if err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}
		if second.ID == first.ID {
			t.Error("expired session must not be resurrected")
		}
	})
}

func TestGetUnknownSession(t *testing.T) {
	store := newTestSessionStore()

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	store := newTestSessionStore()
	ctx := context.Background()

	created, _ := store.GetOrCreate(ctx, "user-1", time.Hour)
	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	got.Revoked = true

	valid, err := store.IsValid(ctx, created.ID)
	if err != nil {
		t.Fatalf("IsValid() error = %v", err)
	}
	if !valid {
		t.Error("mutating a returned copy changed stored state")
	}
}

func TestRevokeIsMonotonic(t *testing.T) {
	store := newTestSessionStore()
	ctx := context.Background()

	sess, _ := store.GetOrCreate(ctx, "user-1", time.Hour)
	if err := store.Revoke(ctx, sess.ID); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if err := store.Revoke(ctx, sess.ID); err != nil {
		t.Fatalf("second Revoke() error = %v", err)
	}

	valid, _ := store.IsValid(ctx, sess.ID)
	if valid {
		t.Error("revoked session reported valid")
	}
	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() after revoke error = %v", err)
	}
	if !got.Revoked {
		t.Error("Revoked flag not persisted")
	}
}

func TestRevokeUnknownSession(t *testing.T) {
	store := newTestSessionStore()

	err := store.Revoke(context.Background(), "missing")
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Revoke() error = %v, want ErrSessionNotFound", err)
	}
}

func TestTouchUpdatesLastSeen(t *testing.T) {
	store := newTestSessionStore()
	ctx := context.Background()

	sess, _ := store.GetOrCreate(ctx, "user-1", time.Hour)
	before := sess.LastSeenAt

	time.Sleep(5 * time.Millisecond)
	if err := store.Touch(ctx, sess.ID); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	got, _ := store.Get(ctx, sess.ID)
	if !got.LastSeenAt.After(before) {
		t.Errorf("LastSeenAt = %v, want after %v", got.LastSeenAt, before)
	}

	// Absent session: no error, no recreation.
	if err := store.Touch(ctx, "missing"); err != nil {
		t.Fatalf("Touch() on absent session error = %v", err)
	}
}

func TestDeleteRemovesSessionAndIndex(t *testing.T) {
	store := newTestSessionStore()
	ctx := context.Background()

	sess, _ := store.GetOrCreate(ctx, "user-1", time.Hour)
	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
	}

	// The subject can log in again and gets a fresh session.
	next, err := store.GetOrCreate(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("GetOrCreate() after delete error = %v", err)
	}
	if next.ID == sess.ID {
		t.Error("deleted session ID reused")
	}

	// Deleting again is a no-op.
	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
}

func TestSweepRemovesExactlyExpired(t *testing.T) {
	store := newTestSessionStore()
	ctx := context.Background()

	expiredA, _ := store.GetOrCreate(ctx, "user-a", time.Millisecond)
	expiredB, _ := store.GetOrCreate(ctx, "user-b", time.Millisecond)
	live, _ := store.GetOrCreate(ctx, "user-c", time.Hour)

	removed, err := store.Sweep(ctx, time.Now().UTC().Add(time.Second))
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Sweep() removed = %d, want 2", removed)
	}
	for _, id := range []string{expiredA.ID, expiredB.ID} {
		if _, err := store.Get(ctx, id); !errors.Is(err, session.ErrSessionNotFound) {
			t.Errorf("expired session %s survived sweep", id)
		}
	}
	if _, err := store.Get(ctx, live.ID); err != nil {
		t.Errorf("live session removed by sweep: %v", err)
	}
	if store.Size() != 1 {
		t.Errorf("Size() = %d, want 1", store.Size())
	}
}

func TestSweepLeavesRevokedUnexpired(t *testing.T) {
	store := newTestSessionStore()
	ctx := context.Background()

	sess, _ := store.GetOrCreate(ctx, "user-1", time.Hour)
	_ = store.Revoke(ctx, sess.ID)

	removed, err := store.Sweep(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 0 {
		t.Errorf("Sweep() removed = %d, want 0", removed)
	}
	// Still present so callers can distinguish revoked from expired.
	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Revoked {
		t.Error("Revoked flag lost")
	}
}

func TestSweeperLifecycle(t *testing.T) {
	store := NewSessionStoreWithConfig(10*time.Millisecond, nil)
	ctx := context.Background()

	expired, _ := store.GetOrCreate(ctx, "user-1", time.Millisecond)
	store.StartSweeper(ctx)

	deadline := time.After(2 * time.Second)
	for {
		if _, err := store.Get(ctx, expired.ID); errors.Is(err, session.ErrSessionNotFound) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sweeper did not remove expired session in time")
		case <-time.After(10 * time.Millisecond):
		}
	}

	store.Stop()
	store.Stop() // must be safe to call twice
}
