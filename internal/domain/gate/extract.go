package gate

import (
	"errors"
	"net/http"
	"strings"
)

// ErrMissingCredential is returned when a request carries no bearer
// credential in either accepted location.
var ErrMissingCredential = errors.New("missing credential")

// ExtractCredential pulls the bearer credential from an upgrade request.
// An "Authorization: Bearer <token>" header takes priority over a "token"
// query parameter when both are present, so a request can never be
// authenticated against one credential while a different one rides along
// in the URL. Pure function of the request.
func ExtractCredential(r *http.Request) (string, error) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			if tok := strings.TrimPrefix(auth, "Bearer "); tok != "" {
				return tok, nil
			}
		}
	}
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok, nil
	}
	return "", ErrMissingCredential
}
