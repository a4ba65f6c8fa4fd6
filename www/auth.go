package www

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"nodefleet/config"
)

// TokenVerifier decides whether a bearer token grants access.
type TokenVerifier interface {
	Verify(token string) bool
}

// StaticToken accepts exactly one token.
type StaticToken string

func (s StaticToken) Verify(token string) bool {
	if s == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s), []byte(token)) == 1
}

// HashedToken accepts the token whose bcrypt hash it holds.
type HashedToken []byte

func (h HashedToken) Verify(token string) bool {
	return bcrypt.CompareHashAndPassword(h, []byte(token)) == nil
}

// HashToken returns the bcrypt hash to configure as api_token_hash.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	return string(hash), err
}

// NewTokenVerifier prefers a configured hash over the plain token.
func NewTokenVerifier(cfg config.WebConfig) TokenVerifier {
	if cfg.APITokenHash != "" {
		return HashedToken(cfg.APITokenHash)
	}
	return StaticToken(cfg.APIToken)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (h *Handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || !h.verifier.Verify(token) {
			h.log.Warn().Str("path", r.URL.Path).Bool("header_present", ok).Msg("unauthorized request")
			w.Header().Set("WWW-Authenticate", `Bearer realm="nodefleet"`)
			textError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
