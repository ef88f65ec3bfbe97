// Package redisstore provides a Redis-backed session store for deployments
// where the gateway process restarts must not drop live sessions.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chat-gate/chatgate/internal/domain/session"
)

// Key layout:
//
//	chatgate:session:<id>   hash {subject_id, created_at, expires_at, revoked, last_seen_at}
//	chatgate:subject:<id>   string, current session id for the subject
//
// Timestamps are stored as unix milliseconds. Session hashes carry a
// PEXPIREAT so Redis reclaims them even if Sweep never runs; revoked
// records stay until their natural expiry so the supervisor can
// distinguish revocation from expiry.
const (
	sessionPrefix = "chatgate:session:"
	subjectPrefix = "chatgate:subject:"
)

// getOrCreateScript atomically resolves the subject's current session:
// reuse when still valid, supersede otherwise. Runs as a single script so
// two concurrent logins for one subject cannot both create a session.
const getOrCreateScript = `
local cur = redis.call("GET", KEYS[1])
if cur then
  local skey = ARGV[5] .. cur
  local vals = redis.call("HMGET", skey, "expires_at", "revoked")
  if vals[1] and tonumber(ARGV[3]) < tonumber(vals[1]) and vals[2] == "0" then
    return cur
  end
  redis.call("DEL", skey)
end
local skey = ARGV[5] .. ARGV[1]
redis.call("HSET", skey,
  "subject_id", ARGV[2],
  "created_at", ARGV[3],
  "expires_at", ARGV[4],
  "revoked", "0",
  "last_seen_at", ARGV[3])
redis.call("PEXPIREAT", skey, tonumber(ARGV[4]))
redis.call("SET", KEYS[1], ARGV[1], "PXAT", tonumber(ARGV[4]))
return ARGV[1]
`

const touchScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  redis.call("HSET", KEYS[1], "last_seen_at", ARGV[1])
  return 1
end
return 0
`

const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  redis.call("HSET", KEYS[1], "revoked", "1")
  return 1
end
return 0
`

var (
	getOrCreateLua = redis.NewScript(getOrCreateScript)
	touchLua       = redis.NewScript(touchScript)
	revokeLua      = redis.NewScript(revokeScript)
)

// SessionStore implements session.Store on Redis.
// Per-entry atomicity comes from Redis's single-threaded script execution;
// unrelated subjects never serialize on anything in this process.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a Redis-backed session store over the client.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(id string) string  { return sessionPrefix + id }
func subjectKey(id string) string  { return subjectPrefix + id }
func millis(t time.Time) int64     { return t.UnixMilli() }
func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// wrapErr classifies backend failures as transient so callers apply their
// bounded-retry policy instead of failing the session outright.
func wrapErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", session.ErrStoreUnavailable, op, err)
}

// GetOrCreate atomically returns the subject's valid session or supersedes
// it with a fresh one expiring at now+ttl.
func (s *SessionStore) GetOrCreate(ctx context.Context, subjectID string, ttl time.Duration) (*session.Session, error) {
	fresh, err := session.New(subjectID, ttl)
	if err != nil {
		return nil, err
	}

	id, err := getOrCreateLua.Run(ctx, s.client,
		[]string{subjectKey(subjectID)},
		fresh.ID, subjectID,
		millis(fresh.CreatedAt), millis(fresh.ExpiresAt),
		sessionPrefix,
	).Text()
	if err != nil {
		return nil, wrapErr("get_or_create", err)
	}

	if id == fresh.ID {
		return fresh, nil
	}
	// Reused an existing session: read it back.
	return s.Get(ctx, id)
}

// Get retrieves a session by ID regardless of validity.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, wrapErr("get", err)
	}
	if len(fields) == 0 {
		return nil, session.ErrSessionNotFound
	}
	return parseSession(id, fields)
}

// Touch updates LastSeenAt; a no-op when the session is absent.
func (s *SessionStore) Touch(ctx context.Context, id string) error {
	now := millis(time.Now().UTC())
	if err := touchLua.Run(ctx, s.client, []string{sessionKey(id)}, now).Err(); err != nil {
		return wrapErr("touch", err)
	}
	return nil
}

// Revoke sets the revoked flag. Idempotent.
func (s *SessionStore) Revoke(ctx context.Context, id string) error {
	n, err := revokeLua.Run(ctx, s.client, []string{sessionKey(id)}).Int64()
	if err != nil {
		return wrapErr("revoke", err)
	}
	if n == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

// IsValid reports whether the session exists, is not revoked, and has not
// expired.
func (s *SessionStore) IsValid(ctx context.Context, id string) (bool, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	return sess.IsValid(time.Now().UTC()), nil
}

// Delete removes a session record and its subject index entry.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.Del(ctx, subjectKey(sess.SubjectID))
	if _, err := pipe.Exec(ctx); err != nil {
		return wrapErr("delete", err)
	}
	return nil
}

// Sweep removes expired session records. Redis's own key expiry is the
// primary mechanism; the scan catches records whose PEXPIREAT drifted
// (e.g. restored from a dump) and keeps the store contract uniform across
// backends.
func (s *SessionStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	nowMs := millis(now)

	iter := s.client.Scan(ctx, 0, sessionPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		expiresAt, err := s.client.HGet(ctx, key, "expires_at").Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return removed, wrapErr("sweep", err)
		}
		if expiresAt <= nowMs {
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return removed, wrapErr("sweep", err)
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, wrapErr("sweep", err)
	}
	return removed, nil
}

func parseSession(id string, fields map[string]string) (*session.Session, error) {
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session record %s: %w", id, err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session record %s: %w", id, err)
	}
	lastSeen, err := strconv.ParseInt(fields["last_seen_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session record %s: %w", id, err)
	}
	return &session.Session{
		ID:         id,
		SubjectID:  fields["subject_id"],
		CreatedAt:  fromMillis(createdAt),
		ExpiresAt:  fromMillis(expiresAt),
		Revoked:    fields["revoked"] == "1",
		LastSeenAt: fromMillis(lastSeen),
	}, nil
}

// Compile-time interface verification.
var _ session.Store = (*SessionStore)(nil)
