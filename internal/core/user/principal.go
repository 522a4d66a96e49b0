package user

import "github.com/frahmantamala/admin-dashboard/internal/core/rbac"

type AuthMethod string

const (
	AuthMethodSession AuthMethod = "session"
	AuthMethodJWT     AuthMethod = "jwt"
)

// AuthenticatedUser is the request-scoped principal. It is rebuilt for every
// request from a valid session or bearer token and never persisted.
type AuthenticatedUser struct {
	ID          int64              `json:"-"`
	UserID      string             `json:"user_id"`
	Username    string             `json:"username"`
	Email       string             `json:"email"`
	FullName    *string            `json:"full_name,omitempty"`
	Role        rbac.Role          `json:"role"`
	IsActive    bool               `json:"is_active"`
	Permissions rbac.PermissionSet `json:"-"`
	SessionID   string             `json:"-"`
	AuthMethod  AuthMethod         `json:"auth_method"`
}

// NewAuthenticatedUser resolves the permission set from the user's current role.
// sessionID is empty for bearer token resolution.
func NewAuthenticatedUser(u *User, sessionID string, method AuthMethod) *AuthenticatedUser {
	return &AuthenticatedUser{
		ID:          u.ID,
		UserID:      u.UserID,
		Username:    u.Username,
		Email:       u.Email,
		FullName:    u.FullName,
		Role:        u.Role,
		IsActive:    u.IsActive,
		Permissions: rbac.PermissionsFor(u.Role),
		SessionID:   sessionID,
		AuthMethod:  method,
	}
}

func (a *AuthenticatedUser) HasPermission(p rbac.Permission) bool {
	return a.Permissions.Has(p)
}

func (a *AuthenticatedUser) HasAnyPermission(perms ...rbac.Permission) bool {
	return a.Permissions.HasAny(perms...)
}

func (a *AuthenticatedUser) HasAllPermissions(perms ...rbac.Permission) bool {
	return a.Permissions.HasAll(perms...)
}

func (a *AuthenticatedUser) IsAdmin() bool {
	return a.Role.IsAdmin()
}
