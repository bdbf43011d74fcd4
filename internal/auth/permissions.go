package auth

// Permission represents a named capability.
type Permission string

// Permission constants.
const (
	PermRunRead Permission = "run:read"
	PermRunStop Permission = "run:stop"
)

// rolePermissions is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer:   {PermRunRead},
	RoleOperator: {PermRunRead, PermRunStop},
}

// HasPermission reports whether role grants perm. Unknown roles grant
// nothing.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
