// Package auth guards the receiver's read API with a static bearer token.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mattjoyce/scrapehook/internal/signature"
)

func ExtractBearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", errors.New("missing Authorization header")
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", errors.New("invalid Authorization header format")
	}

	token := strings.TrimSpace(strings.TrimPrefix(auth, prefix))
	if token == "" {
		return "", errors.New("missing API token")
	}
	return token, nil
}

// Authenticate compares a presented token with the configured one in constant time.
// An empty configured token never authenticates.
func Authenticate(presented, configured string) bool {
	if presented == "" || configured == "" {
		return false
	}
	return signature.Equal(presented, configured)
}

// RequireToken rejects requests without the configured bearer token with 401.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, err := ExtractBearerToken(r)
			if err != nil || !Authenticate(presented, token) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="scrapehook"`)
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
