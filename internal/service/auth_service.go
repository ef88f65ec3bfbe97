// Package service contains the application services that tie the domain
// packages to the transports.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chat-gate/chatgate/internal/domain/session"
	"github.com/chat-gate/chatgate/internal/domain/token"
	"github.com/chat-gate/chatgate/internal/domain/user"
)

// ErrInvalidCredentials is returned on login when the username or password
// is wrong. Deliberately one error for both cases so responses do not leak
// which usernames exist.
var ErrInvalidCredentials = errors.New("invalid username or password")

// AuthService handles registration, login, and logout.
type AuthService struct {
	users      user.Store
	sessions   session.Store
	issuer     *token.Issuer
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewAuthService creates the authentication service.
func NewAuthService(users user.Store, sessions session.Store, issuer *token.Issuer, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:      users,
		sessions:   sessions,
		issuer:     issuer,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// Register creates a new account. The password must satisfy the strength
// policy; it is stored only as an Argon2id hash.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*user.User, error) {
	if err := user.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := user.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &user.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "subject_id", u.ID, "username", username)
	return u, nil
}

// LoginResult carries everything a successful login produces.
type LoginResult struct {
	Token   string
	Session *session.Session
	User    *user.User
}

// Login verifies the credentials, resolves the subject's session, and mints
// a bearer token carrying the session hint.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := user.VerifyPassword(password, u.PasswordHash); err != nil {
		if errors.Is(err, user.ErrPasswordHashMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	sess, err := s.sessions.GetOrCreate(ctx, u.ID, s.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	raw, err := s.issuer.Issue(u.ID, sess.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "subject_id", u.ID, "session_id", sess.ID)
	return &LoginResult{Token: raw, Session: sess, User: u}, nil
}

// Logout revokes the session. Idempotent: logging out of a session that is
// already gone succeeds.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	err := s.sessions.Revoke(ctx, sessionID)
	if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		return err
	}
	s.logger.Info("session revoked", "session_id", sessionID)
	return nil
}
