package shared

import "context"

// Identity describes the authenticated actor attached to a request by the
// upstream gateway.
type Identity struct {
	UserID int64
	Staff  bool
}

type identityContextKey struct{}

// ContextWithIdentity stores the actor identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the actor identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
