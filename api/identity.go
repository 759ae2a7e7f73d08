package api

import (
	"context"
	"net/http"
)

// identityHeader carries the authenticated user id. Authentication itself is
// an external collaborator (a gateway or auth middleware upstream of this
// service); by the time a request arrives here the id is trusted.
const identityHeader = "X-User-Id"

type contextKey string

const identityKey contextKey = "identity"

// RequireIdentity rejects requests that arrive without an authenticated user
// id and stashes the id in the request context for handlers.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(identityHeader)
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, Response{
				Success: false,
				Message: "Not authorized: missing user identity",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, userID)))
	})
}

// identityFrom returns the authenticated user id stored by RequireIdentity.
func identityFrom(r *http.Request) string {
	id, _ := r.Context().Value(identityKey).(string)
	return id
}
