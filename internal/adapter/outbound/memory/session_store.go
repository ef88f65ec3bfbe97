// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chat-gate/chatgate/internal/domain/session"
)

// DefaultSweepInterval is the default period for the background expiry sweep.
const DefaultSweepInterval = 1 * time.Minute

const shardCount = 16

// SessionStore implements session.Store with sharded in-memory maps.
// Entries are distributed across shards by xxhash so operations on
// unrelated subjects never contend on the same lock. Records are assigned
// to an ID shard by session ID; a second shard set indexes the active
// session per subject, which is what makes GetOrCreate atomic per subject.
//
// Lock order is always subject shard before ID shard; Sweep collects
// candidates lock-free first and then re-takes locks in that same order.
type SessionStore struct {
	idShards   [shardCount]idShard
	subjShards [shardCount]subjShard

	sweepInterval time.Duration
	sweepCounter  prometheus.Counter
	stopChan      chan struct{}
	wg            sync.WaitGroup
	once          sync.Once // Prevent double-close panic on Stop()
	logger        *slog.Logger
}

type idShard struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

type subjShard struct {
	mu     sync.Mutex
	active map[string]string // subjectID -> sessionID
}

// NewSessionStore creates an in-memory session store with the default
// sweep interval.
func NewSessionStore(logger *slog.Logger) *SessionStore {
	return NewSessionStoreWithConfig(DefaultSweepInterval, logger)
}

// NewSessionStoreWithConfig creates an in-memory session store with a
// custom sweep interval.
func NewSessionStoreWithConfig(sweepInterval time.Duration, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SessionStore{
		sweepInterval: sweepInterval,
		stopChan:      make(chan struct{}),
		logger:        logger,
	}
	for i := range s.idShards {
		s.idShards[i].sessions = make(map[string]*session.Session)
	}
	for i := range s.subjShards {
		s.subjShards[i].active = make(map[string]string)
	}
	return s
}

// SetSweepCounter attaches a counter incremented by the number of sessions
// each sweep removes. Call before StartSweeper.
func (s *SessionStore) SetSweepCounter(c prometheus.Counter) {
	s.sweepCounter = c
}

func shardIndex(key string) int {
	return int(xxhash.Sum64String(key) % shardCount)
}

func (s *SessionStore) idShardFor(sessionID string) *idShard {
	return &s.idShards[shardIndex(sessionID)]
}

func (s *SessionStore) subjShardFor(subjectID string) *subjShard {
	return &s.subjShards[shardIndex(subjectID)]
}

// StartSweeper starts the background goroutine that periodically removes
// expired sessions, independent of any connection's lifecycle.
// Call Stop() to shut it down gracefully.
func (s *SessionStore) StartSweeper(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				removed, _ := s.Sweep(ctx, time.Now().UTC())
				if removed > 0 {
					if s.sweepCounter != nil {
						s.sweepCounter.Add(float64(removed))
					}
					s.logger.Debug("swept expired sessions", "count", removed)
				}
			}
		}
	}()
}

// Stop stops the background sweeper and waits for it to exit.
// Safe to call multiple times.
func (s *SessionStore) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

// GetOrCreate returns the subject's existing session when still valid, or
// supersedes it with a fresh one. The subject shard lock serializes
// concurrent logins for the same subject, so two racing calls observe the
// same record.
func (s *SessionStore) GetOrCreate(ctx context.Context, subjectID string, ttl time.Duration) (*session.Session, error) {
	subj := s.subjShardFor(subjectID)
	subj.mu.Lock()
	defer subj.mu.Unlock()

	now := time.Now().UTC()
	if currentID, ok := subj.active[subjectID]; ok {
		shard := s.idShardFor(currentID)
		shard.mu.Lock()
		current, found := shard.sessions[currentID]
		if found && current.IsValid(now) {
			cp := *current
			shard.mu.Unlock()
			return &cp, nil
		}
		// Revoked or expired prior session: supersede. It must not remain
		// acceptable in parallel with the new login.
		delete(shard.sessions, currentID)
		shard.mu.Unlock()
		delete(subj.active, subjectID)
	}

	fresh, err := session.New(subjectID, ttl)
	if err != nil {
		return nil, err
	}
	shard := s.idShardFor(fresh.ID)
	shard.mu.Lock()
	cp := *fresh
	shard.sessions[fresh.ID] = &cp
	shard.mu.Unlock()
	subj.active[subjectID] = fresh.ID

	return fresh, nil
}

// Get retrieves a session by ID regardless of validity.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	shard := s.idShardFor(id)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	sess, ok := shard.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

// Touch updates LastSeenAt. A no-op when the session is absent: the sweep
// may have already removed it.
func (s *SessionStore) Touch(ctx context.Context, id string) error {
	shard := s.idShardFor(id)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if sess, ok := shard.sessions[id]; ok {
		sess.LastSeenAt = time.Now().UTC()
	}
	return nil
}

// Revoke sets the revoked flag. Idempotent.
func (s *SessionStore) Revoke(ctx context.Context, id string) error {
	shard := s.idShardFor(id)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	sess, ok := shard.sessions[id]
	if !ok {
		return session.ErrSessionNotFound
	}
	sess.Revoked = true
	return nil
}

// IsValid reports whether the session exists, is not revoked, and has not
// expired. Expired entries are left for the sweeper to remove.
func (s *SessionStore) IsValid(ctx context.Context, id string) (bool, error) {
	shard := s.idShardFor(id)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	sess, ok := shard.sessions[id]
	if !ok {
		return false, nil
	}
	return sess.IsValid(time.Now().UTC()), nil
}

// Delete removes a session record and its subject index entry.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	shard := s.idShardFor(id)
	shard.mu.Lock()
	sess, ok := shard.sessions[id]
	if !ok {
		shard.mu.Unlock()
		return nil
	}
	subjectID := sess.SubjectID
	delete(shard.sessions, id)
	shard.mu.Unlock()

	subj := s.subjShardFor(subjectID)
	subj.mu.Lock()
	if subj.active[subjectID] == id {
		delete(subj.active, subjectID)
	}
	subj.mu.Unlock()
	return nil
}

// Sweep removes every session with ExpiresAt <= now. Candidates are
// collected under read locks first, then removed entry by entry in the
// subject-then-ID lock order with the expiry re-checked, so a concurrent
// GetOrCreate that just superseded an entry is never clobbered.
func (s *SessionStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	type candidate struct {
		id        string
		subjectID string
	}
	var expired []candidate

	for i := range s.idShards {
		shard := &s.idShards[i]
		shard.mu.RLock()
		for id, sess := range shard.sessions {
			if sess.IsExpired(now) {
				expired = append(expired, candidate{id: id, subjectID: sess.SubjectID})
			}
		}
		shard.mu.RUnlock()
	}

	removed := 0
	for _, c := range expired {
		subj := s.subjShardFor(c.subjectID)
		subj.mu.Lock()
		shard := s.idShardFor(c.id)
		shard.mu.Lock()
		if sess, ok := shard.sessions[c.id]; ok && sess.IsExpired(now) {
			delete(shard.sessions, c.id)
			if subj.active[c.subjectID] == c.id {
				delete(subj.active, c.subjectID)
			}
			removed++
		}
		shard.mu.Unlock()
		subj.mu.Unlock()
	}
	return removed, nil
}

// Size returns the number of sessions currently stored.
// Useful for testing sweep behavior.
func (s *SessionStore) Size() int {
	total := 0
	for i := range s.idShards {
		shard := &s.idShards[i]
		shard.mu.RLock()
		total += len(shard.sessions)
		shard.mu.RUnlock()
	}
	return total
}

// Compile-time interface verification.
var _ session.Store = (*SessionStore)(nil)
