package internal

import (
	"context"
	"time"

	"github.com/frahmantamala/admin-dashboard/internal/core/user"
)

type ctxKey string

const (
	ContextUserKey      ctxKey = "userID"
	ContextPrincipalKey ctxKey = "principal"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if userID, ok := ctx.Value(ContextUserKey).(string); ok {
		return userID
	}
	return ""
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextUserKey, userID)
}

// ContextWithPrincipal stores the resolved principal along with its public user id.
func ContextWithPrincipal(ctx context.Context, p *user.AuthenticatedUser) context.Context {
	ctx = context.WithValue(ctx, ContextPrincipalKey, p)
	return ContextWithUserID(ctx, p.UserID)
}

// PrincipalFromContext returns nil when the request was not authenticated.
func PrincipalFromContext(ctx context.Context) *user.AuthenticatedUser {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(ContextPrincipalKey).(*user.AuthenticatedUser)
	return p
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
