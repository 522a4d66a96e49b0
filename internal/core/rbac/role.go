package rbac

import "strings"

// Role is the coarse-grained user category. One per user.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleAgent      Role = "agent"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

var roleRank = map[Role]int{
	RoleCustomer:   1,
	RoleAgent:      2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// AllRoles returns the roles ordered from least to most privileged.
func AllRoles() []Role {
	return []Role{RoleCustomer, RoleAgent, RoleAdmin, RoleSuperAdmin}
}

// ParseRole accepts any casing, so legacy "SUPER_ADMIN" values resolve too.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", false
	}
	return r, true
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Rank is 0 for unknown roles.
func (r Role) Rank() int {
	return roleRank[r]
}

// IsAdmin is derived from the role alone; there is no separately stored flag.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

func (r Role) String() string {
	return string(r)
}
