package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// AuthContext identifies the caller of a request. Space membership and role
// are checked per request against the space in question.
type AuthContext struct {
	UserID  uuid.UUID
	Email   string
	TokenID string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) uuid.UUID {
	ac, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil
	}
	return ac.UserID
}
