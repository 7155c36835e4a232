package auth

import (
	"context"
	"strings"

	"spendwise/internal/core"
)

// Identity answers "who is the current user".
type Identity interface {
	CurrentUserID(ctx context.Context) (string, error)
}

type ctxKey string

const userIDKey ctxKey = "user_id"

// WithUser returns a context carrying the authenticated user id.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns core.ErrNotAuthenticated when no user is set.
func UserIDFromContext(ctx context.Context) (string, error) {
	uid, ok := ctx.Value(userIDKey).(string)
	if !ok || strings.TrimSpace(uid) == "" {
		return "", core.ErrNotAuthenticated
	}
	return uid, nil
}

// ContextIdentity reads the user placed in the context by Middleware or WithUser.
type ContextIdentity struct{}

func (ContextIdentity) CurrentUserID(ctx context.Context) (string, error) {
	return UserIDFromContext(ctx)
}

// Static always resolves to the same user. Used by the worker, which acts on
// behalf of each user in turn.
type Static string

func (s Static) CurrentUserID(context.Context) (string, error) {
	if s == "" {
		return "", core.ErrNotAuthenticated
	}
	return string(s), nil
}
