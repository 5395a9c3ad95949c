package domain

import "context"

// AnonymousUser is the acting user when none is known.
const AnonymousUser = "anonymous"

type userKey struct{}

// WithUser returns a context carrying the acting user id.
func WithUser(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFrom returns the acting user id of ctx, or AnonymousUser.
func UserFrom(ctx context.Context) string {
	if id, ok := ctx.Value(userKey{}).(string); ok && id != "" {
		return id
	}
	return AnonymousUser
}
