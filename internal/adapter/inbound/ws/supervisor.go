package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chat-gate/chatgate/internal/domain/session"
)

// Application close codes in the private range of RFC 6455, so a client can
// tell why it was disconnected without parsing reason text.
const (
	// CloseSessionExpired: the session's validity window passed mid-connection.
	CloseSessionExpired = 4401
	// CloseSessionRevoked: the session was revoked mid-connection.
	CloseSessionRevoked = 4403
)

// DefaultLivenessInterval is how often a connection's session is rechecked
// when the config leaves it unset.
const DefaultLivenessInterval = 30 * time.Second

// maxConsecutiveFaults is how many liveness checks in a row may fail with a
// transient store error before the connection is terminated. A single
// fault leaves the connection up; session state is unknown, not invalid.
const maxConsecutiveFaults = 1

// State is a connection's position in its lifecycle. Transitions only move
// forward: Active to one of the closing states, then Terminated.
type State string

const (
	StateActive       State = "active"
	StateRevoked      State = "revoked"
	StateExpired      State = "expired"
	StateClosedByPeer State = "closed_by_peer"
	StateTerminated   State = "terminated"
)

// Supervisor owns one connection's session liveness. Authentication happened
// exactly once at upgrade; from then on the supervisor rechecks the store
// periodically and closes the connection the moment the session stops being
// valid, with a close code naming the cause.
type Supervisor struct {
	client   *Client
	sessions session.Store
	interval time.Duration
	metrics  *Metrics
	logger   *slog.Logger

	state  State
	faults int
}

// NewSupervisor creates a supervisor for the client's session.
func NewSupervisor(client *Client, sessions session.Store, interval time.Duration, metrics *Metrics, logger *slog.Logger) *Supervisor {
	if interval <= 0 {
		interval = DefaultLivenessInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		client:   client,
		sessions: sessions,
		interval: interval,
		metrics:  metrics,
		logger:   logger.With("connection_id", client.id, "session_id", client.sessionID),
		state:    StateActive,
	}
}

// Run rechecks the session every interval until the connection ends.
// Blocks until terminated; run on its own goroutine.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Peer disconnect or local shutdown. The close frame is a no-op
			// when the peer already hung up.
			if s.state == StateActive {
				s.state = StateClosedByPeer
				s.client.closeWith(websocket.CloseGoingAway, "")
			}
			s.terminate()
			return

		case <-ticker.C:
			if done := s.check(ctx); done {
				s.terminate()
				return
			}
		}
	}
}

// check performs one liveness probe. Returns true when the connection is
// being closed and supervision should end.
func (s *Supervisor) check(ctx context.Context) bool {
	valid, err := s.sessions.IsValid(ctx, s.client.sessionID)
	if err != nil {
		if ctx.Err() != nil {
			if s.state == StateActive {
				s.state = StateClosedByPeer
			}
			return true
		}
		s.faults++
		s.metrics.LivenessChecks.WithLabelValues("error").Inc()
		if s.faults <= maxConsecutiveFaults {
			s.logger.Warn("liveness check failed, tolerating transient fault",
				"error", err, "consecutive_faults", s.faults)
			return false
		}
		// Fail closed: state unknown for too long.
		s.logger.Error("liveness checks failing persistently, closing connection",
			"error", err, "consecutive_faults", s.faults)
		s.state = StateExpired
		s.client.closeWith(CloseSessionExpired, "session state unavailable")
		return true
	}
	s.faults = 0

	if valid {
		s.metrics.LivenessChecks.WithLabelValues("valid").Inc()
		if err := s.sessions.Touch(ctx, s.client.sessionID); err != nil {
			s.logger.Debug("session touch failed", "error", err)
		}
		return false
	}

	// Distinguish revocation from expiry for the close code. A record the
	// sweeper already removed counts as expired.
	s.state = StateExpired
	code, reason := CloseSessionExpired, "session expired"
	if sess, err := s.sessions.Get(ctx, s.client.sessionID); err == nil && sess.Revoked {
		s.state = StateRevoked
		code, reason = CloseSessionRevoked, "session revoked"
	}
	s.metrics.LivenessChecks.WithLabelValues("invalid").Inc()
	s.logger.Info("session no longer valid, closing connection", "state", string(s.state))
	s.client.closeWith(code, reason)
	return true
}

func (s *Supervisor) terminate() {
	cause := s.state
	s.state = StateTerminated
	s.metrics.ConnectionsClosed.WithLabelValues(string(cause)).Inc()
	s.client.cancel()
	s.logger.Debug("connection terminated", "cause", string(cause))
}
