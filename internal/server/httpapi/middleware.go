package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/stacknotes/syncserver/internal/common"
)

type ctxKey string

const userUUIDKey ctxKey = "userUUID"

// requireUser is the access guard: it resolves the bearer token to a user
// uuid and stores it in the request context, or rejects the request with 401.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, common.ErrorUnauthenticated)
			return
		}

		userUUID, err := s.users.ResolveAccessToken(token)
		if err != nil {
			writeError(w, common.ErrorUnauthenticated)
			return
		}

		ctx := context.WithValue(r.Context(), userUUIDKey, userUUID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userUUID returns the authenticated user set by requireUser.
func userUUID(r *http.Request) string {
	v, _ := r.Context().Value(userUUIDKey).(string)
	return v
}
