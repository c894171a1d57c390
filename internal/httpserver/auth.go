package httpserver

import (
	"context"
	"net/http"
	"strings"

	"thoughtbox/internal/domain"
)

type ctxKey int

const userKey ctxKey = 0

// authed wraps a handler with bearer-token authentication. The resolved user
// is available via currentUser.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "AuthRequired", "missing bearer token")
			return
		}

		user, err := s.svc.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "AuthRequired", "invalid or expired token")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// currentUser returns the authenticated user set by the authed middleware.
func currentUser(r *http.Request) *domain.User {
	u, _ := r.Context().Value(userKey).(*domain.User)
	return u
}
