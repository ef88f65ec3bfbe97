// Package gate makes the accept/reject decision for WebSocket upgrade
// requests: credential extraction, token verification, and session
// resolution, in that order, fail-closed.
package gate

import (
	"net/http"
)

// Reason classifies why an upgrade attempt was accepted or rejected.
// Each rejection reason maps onto exactly one entry of the error taxonomy
// so callers can select an HTTP status or close code without inspecting
// error strings.
type Reason string

const (
	// ReasonAccepted marks a successful authentication.
	ReasonAccepted Reason = "accepted"
	// ReasonMissingCredential: no bearer credential in header or query.
	ReasonMissingCredential Reason = "missing_credential"
	// ReasonMalformedToken: the credential is not a structurally valid token.
	ReasonMalformedToken Reason = "malformed_token"
	// ReasonInvalidSignature: the signature did not verify.
	ReasonInvalidSignature Reason = "invalid_signature"
	// ReasonTokenExpired: the token's validity window has passed.
	ReasonTokenExpired Reason = "token_expired"
	// ReasonStoreError: the session store failed after bounded retries.
	ReasonStoreError Reason = "store_error"
)

// HTTPStatus maps a rejection reason onto the status the upgrade endpoint
// should answer with before any connection promotion happens.
func (r Reason) HTTPStatus() int {
	switch r {
	case ReasonAccepted:
		return http.StatusSwitchingProtocols
	case ReasonStoreError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}

// Decision is the ephemeral result of one authentication attempt.
// It is never persisted; the session store holds the durable state.
type Decision struct {
	Accepted  bool
	SubjectID string
	SessionID string
	Reason    Reason
}
