package middleware

import "context"

type userKey struct{}

// WithUser stores the authenticated wallet owner on ctx.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserID returns the authenticated user set by AuthMiddleware.
func UserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userKey{}).(string)
	return v, ok && v != ""
}
