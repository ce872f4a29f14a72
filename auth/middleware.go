package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const dispatcherIDKey contextKey = "dispatcher_id"

// Middleware validates the bearer token of incoming requests and injects
// the caller's dispatcher id into the request context. Websocket clients
// cannot set headers from the browser, so a "token" query parameter is
// accepted as a fallback.
func Middleware(tokens TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				http.Error(w, "authorization token is missing", http.StatusUnauthorized)
				return
			}

			claims, err := tokens.Validate(tokenStr)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), dispatcherIDKey, claims.DispatcherID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DispatcherID extracts the authenticated caller from the request context.
func DispatcherID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(dispatcherIDKey).(string)
	return id, ok && id != ""
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
