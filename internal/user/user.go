package user

import (
	"context"

	"github.com/frahmantamala/admin-dashboard/internal/core/events"
	"github.com/frahmantamala/admin-dashboard/internal/core/rbac"
	"github.com/frahmantamala/admin-dashboard/internal/core/user"
)

// Repository persists accounts. Lookups return (nil, nil) on a miss and the
// update methods report whether a row matched.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
	GetByUserID(ctx context.Context, userID string) (*user.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u *user.User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) (bool, error)
	SetActive(ctx context.Context, id int64, active bool) (bool, error)
	UpdateRole(ctx context.Context, id int64, role rbac.Role) (bool, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

type SessionInvalidator interface {
	InvalidateAllForUser(ctx context.Context, userID int64) (int64, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}
