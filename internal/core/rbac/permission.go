package rbac

import "sort"

// Permission is a fine-grained capability tag. Permissions are derived from
// the role at resolution time and never stored per user.
type Permission string

const (
	PermUserRead        Permission = "user_read"
	PermUserCreate      Permission = "user_create"
	PermUserUpdate      Permission = "user_update"
	PermUserDelete      Permission = "user_delete"
	PermUserManageRoles Permission = "user_manage_roles"

	PermTicketRead    Permission = "ticket_read"
	PermTicketReadAll Permission = "ticket_read_all"
	PermTicketCreate  Permission = "ticket_create"
	PermTicketUpdate  Permission = "ticket_update"
	PermTicketDelete  Permission = "ticket_delete"
	PermTicketAssign  Permission = "ticket_assign"

	PermCommentRead     Permission = "comment_read"
	PermCommentCreate   Permission = "comment_create"
	PermCommentUpdate   Permission = "comment_update"
	PermCommentDelete   Permission = "comment_delete"
	PermCommentModerate Permission = "comment_moderate"

	PermDashboardView      Permission = "dashboard_view"
	PermDashboardAnalytics Permission = "dashboard_analytics"

	PermSystemSettings    Permission = "system_settings"
	PermSystemLogs        Permission = "system_logs"
	PermSystemBackup      Permission = "system_backup"
	PermSystemMaintenance Permission = "system_maintenance"

	PermChatView     Permission = "chat_view"
	PermChatModerate Permission = "chat_moderate"
	PermChatHistory  Permission = "chat_history"
)

// declared is the permission universe. Adding a constant above without
// listing it here leaves it unreachable from every role, super_admin included.
var declared = []Permission{
	PermUserRead, PermUserCreate, PermUserUpdate, PermUserDelete, PermUserManageRoles,
	PermTicketRead, PermTicketReadAll, PermTicketCreate, PermTicketUpdate, PermTicketDelete, PermTicketAssign,
	PermCommentRead, PermCommentCreate, PermCommentUpdate, PermCommentDelete, PermCommentModerate,
	PermDashboardView, PermDashboardAnalytics,
	PermSystemSettings, PermSystemLogs, PermSystemBackup, PermSystemMaintenance,
	PermChatView, PermChatModerate, PermChatHistory,
}

// AllPermissions returns a fresh copy of every declared permission.
func AllPermissions() []Permission {
	out := make([]Permission, len(declared))
	copy(out, declared)
	return out
}

func ParsePermission(s string) (Permission, bool) {
	for _, p := range declared {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// PermissionSet is an unordered set of permissions.
type PermissionSet map[Permission]struct{}

func NewPermissionSet(perms ...Permission) PermissionSet {
	s := make(PermissionSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// HasAny is false for an empty argument list.
func (s PermissionSet) HasAny(perms ...Permission) bool {
	for _, p := range perms {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// HasAll is true for an empty argument list.
func (s PermissionSet) HasAll(perms ...Permission) bool {
	return len(s.Missing(perms...)) == 0
}

// Missing returns the requested permissions not in s, in request order.
func (s PermissionSet) Missing(perms ...Permission) []Permission {
	var missing []Permission
	for _, p := range perms {
		if !s.Has(p) {
			missing = append(missing, p)
		}
	}
	return missing
}

func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	out := make(PermissionSet, len(s)+len(other))
	for p := range s {
		out[p] = struct{}{}
	}
	for p := range other {
		out[p] = struct{}{}
	}
	return out
}

func (s PermissionSet) Equal(other PermissionSet) bool {
	if len(s) != len(other) {
		return false
	}
	for p := range s {
		if !other.Has(p) {
			return false
		}
	}
	return true
}

// Slice returns the members sorted by name.
func (s PermissionSet) Slice() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s PermissionSet) Strings() []string {
	perms := s.Slice()
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
