package rbac

var customerPermissions = []Permission{
	PermTicketRead, PermTicketCreate, PermTicketUpdate,
	PermCommentRead, PermCommentCreate, PermCommentUpdate,
	PermChatView,
}

var agentPermissions = []Permission{
	PermTicketReadAll, PermTicketAssign,
	PermCommentModerate,
	PermDashboardView,
	PermUserRead,
	PermChatModerate, PermChatHistory,
}

var adminPermissions = []Permission{
	PermUserCreate, PermUserUpdate, PermUserDelete,
	PermTicketDelete,
	PermCommentDelete,
	PermDashboardAnalytics,
	PermSystemLogs, PermSystemSettings,
}

// PermissionsFor returns a copy of the permission set for role. Each role
// extends the one below it; super_admin is computed from the full universe
// so it cannot drift. Unknown roles get an empty set.
func PermissionsFor(role Role) PermissionSet {
	switch role {
	case RoleCustomer:
		return NewPermissionSet(customerPermissions...)
	case RoleAgent:
		return PermissionsFor(RoleCustomer).Union(NewPermissionSet(agentPermissions...))
	case RoleAdmin:
		return PermissionsFor(RoleAgent).Union(NewPermissionSet(adminPermissions...))
	case RoleSuperAdmin:
		return NewPermissionSet(AllPermissions()...)
	default:
		return PermissionSet{}
	}
}
