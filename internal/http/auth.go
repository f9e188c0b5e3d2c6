package http

import (
	"context"
	"net/http"
	"strings"

	"finify/internal/core"
)

type contextKey string

const userContextKey contextKey = "user_id"

// UserHeader identifies the caller. Authentication itself happens at
// the edge proxy; this service only trusts the forwarded identity.
const UserHeader = "X-Finify-User"

// requireUser rejects requests without a caller identity and stores the
// user id in the request context for handlers.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			writeError(r.Context(), w, core.ErrNotAuthenticated)
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userContextKey).(string); ok {
		return id
	}
	return ""
}
