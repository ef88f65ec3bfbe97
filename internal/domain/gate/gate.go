package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chat-gate/chatgate/internal/domain/session"
	"github.com/chat-gate/chatgate/internal/domain/token"
)

// DefaultSessionTTL is applied when the config leaves the session TTL unset.
const DefaultSessionTTL = 30 * time.Minute

// DefaultAuthTimeout bounds one authentication attempt end to end so a
// stalled store cannot hold a half-open socket indefinitely.
const DefaultAuthTimeout = 5 * time.Second

// storeRetries is the number of additional attempts made when the session
// store reports a transient fault during authentication.
const storeRetries = 1

// Config holds gate configuration.
type Config struct {
	// SessionTTL is the lifetime given to sessions created at authentication.
	// Default: DefaultSessionTTL.
	SessionTTL time.Duration
	// AuthTimeout is the wall-clock budget for one authentication attempt.
	// Default: DefaultAuthTimeout.
	AuthTimeout time.Duration
}

// Gate authenticates upgrade requests. Verification is read-only; the only
// write during authentication is the session creation or reuse, and no
// state is mutated on any failure path.
type Gate struct {
	verifier *token.Verifier
	sessions session.Store
	cfg      Config
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New creates a Gate over the given verifier and session store.
func New(verifier *token.Verifier, sessions session.Store, cfg Config, logger *slog.Logger) *Gate {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = DefaultAuthTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		verifier: verifier,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer("chatgate/gate"),
	}
}

// Sessions exposes the store backing the gate, for the supervisors that
// keep consulting it after authentication.
func (g *Gate) Sessions() session.Store {
	return g.sessions
}

// Authenticate produces the accept/reject decision for an upgrade request.
// Pipeline: extract credential, verify token, resolve session. Any failure
// short-circuits to a rejection carrying the originating reason. Absence of
// a definitive acceptance always means reject.
func (g *Gate) Authenticate(ctx context.Context, r *http.Request) Decision {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.AuthTimeout)
	defer cancel()

	ctx, span := g.tracer.Start(ctx, "gate.authenticate")
	defer span.End()

	raw, err := ExtractCredential(r)
	if err != nil {
		return g.reject(span, ReasonMissingCredential, "")
	}

	claims, err := g.verifier.Verify(raw)
	if err != nil {
		return g.reject(span, verifyReason(err), "")
	}
	subjectID := claims.SubjectID()
	span.SetAttributes(attribute.String("auth.subject_id", subjectID))

	// A token may reference a session the store has since swept; that is a
	// fresh login, not a failure. Tokens outlive store entries by contract.
	sess, err := g.resolveSession(ctx, subjectID)
	if err != nil {
		g.logger.Warn("session store unavailable during authentication",
			"subject_id", subjectID, "error", err)
		return g.reject(span, ReasonStoreError, subjectID)
	}

	span.SetAttributes(attribute.String("auth.session_id", sess.ID))
	g.logger.Debug("upgrade authenticated",
		"subject_id", subjectID, "session_id", sess.ID)
	return Decision{
		Accepted:  true,
		SubjectID: subjectID,
		SessionID: sess.ID,
		Reason:    ReasonAccepted,
	}
}

// resolveSession calls GetOrCreate, retrying once on a transient store
// fault. Verification errors are terminal; only ErrStoreUnavailable earns
// a retry.
func (g *Gate) resolveSession(ctx context.Context, subjectID string) (*session.Session, error) {
	var lastErr error
	for attempt := 0; attempt <= storeRetries; attempt++ {
		sess, err := g.sessions.GetOrCreate(ctx, subjectID, g.cfg.SessionTTL)
		if err == nil {
			return sess, nil
		}
		lastErr = err
		if !errors.Is(err, session.ErrStoreUnavailable) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (g *Gate) reject(span trace.Span, reason Reason, subjectID string) Decision {
	span.SetAttributes(attribute.String("auth.reject_reason", string(reason)))
	g.logger.Debug("upgrade rejected", "reason", string(reason))
	return Decision{
		Accepted:  false,
		SubjectID: subjectID,
		Reason:    reason,
	}
}

// verifyReason maps a token verification error onto a rejection reason.
func verifyReason(err error) Reason {
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		return ReasonTokenExpired
	case errors.Is(err, token.ErrInvalidSignature):
		return ReasonInvalidSignature
	default:
		return ReasonMalformedToken
	}
}
