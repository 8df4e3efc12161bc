package utils

import "context"

// SetUserContext sets the authenticated subject into context (called by middleware)
func SetUserContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// GetUserIDFromContext retrieves the authenticated subject. An empty id counts
// as unauthenticated.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}
