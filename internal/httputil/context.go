package httputil

import (
	"context"
	"net"
	"net/http"
	"strings"

	"docvault/internal/domain/models/docsystem"
)

// Context key type to avoid collisions
type contextKey string

const (
	actorKey contextKey = "actor"
)

// WithActor adds the authenticated actor to the request context
func WithActor(r *http.Request, actor docsystem.Actor) *http.Request {
	ctx := context.WithValue(r.Context(), actorKey, actor)
	return r.WithContext(ctx)
}

// GetActor retrieves the actor from context. The zero Actor (empty ID) means
// the request was not authenticated.
func GetActor(r *http.Request) docsystem.Actor {
	actor, _ := r.Context().Value(actorKey).(docsystem.Actor)
	return actor
}

// ClientIP returns the caller address, preferring the first X-Forwarded-For hop
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
