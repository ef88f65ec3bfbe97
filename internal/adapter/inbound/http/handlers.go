// Package http provides the HTTP transport adapter: registration, login,
// logout, health, and metrics, plus the mount point for the WebSocket
// upgrade endpoint.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/chat-gate/chatgate/internal/domain/session"
	"github.com/chat-gate/chatgate/internal/domain/user"
	"github.com/chat-gate/chatgate/internal/service"
)

const maxBodyBytes = 1 << 20 // 1 MiB

type registerRequest struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type logoutRequest struct {
	SessionID string `json:"session_id" validate:"required,len=64,hexadecimal"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type loginResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	ExpiresAt string `json:"expires_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// AuthHandler serves the registration and session endpoints.
type AuthHandler struct {
	auth     *service.AuthService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAuthHandler creates the handler.
func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		auth:     auth,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Register handles POST /register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
	})
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		SessionID: res.Session.ID,
		ExpiresAt: res.Session.ExpiresAt.Format(time.RFC3339),
	})
}

// Logout handles POST /logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.auth.Logout(r.Context(), req.SessionID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode parses and validates the JSON body, writing the 400 itself when
// either step fails.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationMessage(err)})
		return false
	}
	return true
}

// writeError maps domain errors onto HTTP statuses. Unknown errors are
// logged but never echoed to the client.
func (h *AuthHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, user.ErrUsernameTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case isPasswordPolicyError(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, session.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service temporarily unavailable"})
	default:
		h.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func isPasswordPolicyError(err error) bool {
	for _, policyErr := range []error{
		user.ErrPasswordTooShort,
		user.ErrPasswordNoUppercase,
		user.ErrPasswordNoLowercase,
		user.ErrPasswordNoDigit,
		user.ErrPasswordNoSpecial,
	} {
		if errors.Is(err, policyErr) {
			return true
		}
	}
	return false
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		return "invalid field: " + f.Field()
	}
	return "invalid request"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
