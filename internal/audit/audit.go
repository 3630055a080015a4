// Package audit carries the who/where/when metadata stamped onto every
// aggregate mutation. Storage of a full audit trail lives outside this
// service; only the metadata contract is defined here.
package audit

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// Metadata identifies the actor behind a mutation.
type Metadata struct {
	ActorUserID int64
	SourceAddr  string
	At          time.Time
}

type contextKey struct{}

// WithMetadata returns a context carrying the given audit metadata.
func WithMetadata(ctx context.Context, m Metadata) context.Context {
	return context.WithValue(ctx, contextKey{}, m)
}

// FromContext extracts audit metadata from the context. Falls back to an
// anonymous actor stamped with the current time so persistence never writes
// a zero timestamp.
func FromContext(ctx context.Context) Metadata {
	if m, ok := ctx.Value(contextKey{}).(Metadata); ok {
		return m
	}
	return Metadata{At: time.Now().UTC()}
}

// Middleware populates audit metadata from the request. The actor id is
// taken from the X-User-ID header set by the authentication gateway in
// front of this service; the source address relies on chi's RealIP
// middleware having normalized RemoteAddr.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID, _ := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
		m := Metadata{
			ActorUserID: actorID,
			SourceAddr:  r.RemoteAddr,
			At:          time.Now().UTC(),
		}
		next.ServeHTTP(w, r.WithContext(WithMetadata(r.Context(), m)))
	})
}
