package memory

import (
	"context"
	"sync"

	"github.com/chat-gate/chatgate/internal/domain/user"
)

// UserStore implements user.Store with in-memory maps.
// Thread-safe for concurrent access. For development and testing; the
// SQLite store is the persistent implementation.
type UserStore struct {
	mu         sync.RWMutex
	byID       map[string]*user.User
	byUsername map[string]string // username -> id
}

// NewUserStore creates an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		byID:       make(map[string]*user.User),
		byUsername: make(map[string]string),
	}
}

// Create persists a new user.
func (s *UserStore) Create(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[u.Username]; taken {
		return user.ErrUsernameTaken
	}
	cp := *u
	s.byID[u.ID] = &cp
	s.byUsername[u.Username] = u.ID
	return nil
}

// GetByUsername retrieves a user by login name.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

// GetByID retrieves a user by subject ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// Compile-time interface verification.
var _ user.Store = (*UserStore)(nil)
