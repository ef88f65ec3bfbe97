// Package token verifies and mints the HS256 bearer tokens presented at
// connection time. Verification is stateless: a valid token proves who the
// caller is, while the session store decides whether they may stay.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification errors, ordered by pipeline stage: structure first, then
// signature, then validity window.
var (
	// ErrMalformedToken: the credential is not a structurally valid JWT.
	ErrMalformedToken = errors.New("malformed token")
	// ErrInvalidSignature: the token decodes but the signature does not
	// verify against the shared secret.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrTokenExpired: the signature verifies but the validity window has
	// passed. The window is half-open: a token is live on [iat, exp) and
	// expired at exactly exp.
	ErrTokenExpired = errors.New("token expired")
)

// Claims are the registered JWT claims plus the session hint.
type Claims struct {
	// SessionID optionally names the session the token was minted for.
	// A dangling value is not an error; the store is authoritative.
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID returns the authenticated subject identifier.
func (c *Claims) SubjectID() string {
	return c.Subject
}

// Config holds the verifier and issuer settings.
type Config struct {
	// Secret is the HMAC-SHA256 shared secret. Required.
	Secret []byte
	// Issuer, when set, is enforced on verification and stamped on issue.
	Issuer string
	// Leeway tolerates clock skew when checking exp. Zero means strict.
	Leeway time.Duration
	// TTL is the lifetime of issued tokens. Issue only.
	TTL time.Duration
}

// Verifier checks bearer tokens. Stateless and safe for concurrent use.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier creates a verifier pinned to HS256. Tokens signed with any
// other algorithm, including "none", fail as ErrInvalidSignature.
func NewVerifier(cfg Config) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	return &Verifier{
		secret: cfg.Secret,
		parser: jwt.NewParser(opts...),
	}
}

// Verify checks structure, signature, and validity window, in that order,
// and returns the claims on success. Verification never touches any store.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

// classifyParseError maps the library's error set onto the package's three
// sentinel errors so callers never match on strings.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

// Issuer mints tokens for authenticated subjects.
type Issuer struct {
	cfg Config
}

// NewIssuer creates an issuer with the given settings.
func NewIssuer(cfg Config) *Issuer {
	return &Issuer{cfg: cfg}
}

// Issue mints an HS256 token for the subject, carrying the session hint.
func (i *Issuer) Issue(subjectID, sessionID string) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TTL)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
