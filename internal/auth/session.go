// Package auth carries the authenticated session through a request context.
package auth

import (
	"context"

	"github.com/iliyamo/cabin-reservation/internal/model"
)

type sessionKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s model.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by WithSession.  The second result
// is false for anonymous requests.
func FromContext(ctx context.Context) (model.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(model.Session)
	return s, ok && s.GuestID != 0
}

// ContextProvider reads the current session from the request context.
type ContextProvider struct{}

func (ContextProvider) CurrentSession(ctx context.Context) (model.Session, bool) { return FromContext(ctx) }
