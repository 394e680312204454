package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hanzhu/tablab/internal/api/response"
)

// AdminAuth guards the admin endpoints with a single shared bearer secret.
// The token may be configured in plain form (compared in constant time) or as
// a bcrypt hash. The rejection message never says which check failed.
type AdminAuth struct {
	token     string
	tokenHash string
}

// NewAdminAuth creates the middleware. When both token and tokenHash are
// empty the admin endpoints are open — intended only for trusted internal
// deployments, mirroring unsigned download mode.
func NewAdminAuth(token, tokenHash string) *AdminAuth {
	return &AdminAuth{token: token, tokenHash: tokenHash}
}

// Enabled reports whether a secret is configured.
func (a *AdminAuth) Enabled() bool {
	return a.token != "" || a.tokenHash != ""
}

// Require rejects requests lacking a valid bearer token.
func (a *AdminAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		raw := extractBearerToken(r)
		if raw == "" || !a.match(raw) {
			response.Error(w, http.StatusUnauthorized,
				"UNAUTHORIZED", "Missing or invalid admin token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *AdminAuth) match(raw string) bool {
	if a.tokenHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(a.tokenHash), []byte(raw)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(a.token), []byte(raw)) == 1
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
