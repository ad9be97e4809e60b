// Package requestctx carries the authenticated caller through HTTP handlers.
package requestctx

import (
	"context"
	"time"
)

// Caller is the identity resolved from a verified bearer token.
type Caller struct {
	UserID   string
	Username string
	Role     string
	// Token is the raw bearer token as presented.
	Token string
	// TokenID is the verified token id that logout revokes.
	TokenID   string
	ExpiresAt time.Time
}

type callerContextKey struct{}

// WithCaller stores the authenticated caller in context.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext returns the caller stored in context, if any.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	caller, ok := ctx.Value(callerContextKey{}).(Caller)
	return caller, ok
}

// UserIDFromContext returns the caller's user identifier, or "".
func UserIDFromContext(ctx context.Context) string {
	caller, _ := CallerFromContext(ctx)
	return caller.UserID
}
