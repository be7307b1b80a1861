package auth

// Permission represents a named capability.
type Permission string

// Permission constants.
const (
	PermAttributeRead  Permission = "attribute:read"
	PermAttributeWrite Permission = "attribute:write"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleViewer:   {PermAttributeRead},
	RoleOperator: {PermAttributeRead, PermAttributeWrite},
}

// HasPermission reports whether role grants perm.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Authorize returns ErrForbidden unless the claims grant perm.
func (c *Claims) Authorize(perm Permission) error {
	if !HasPermission(c.Role, perm) {
		return ErrForbidden
	}
	return nil
}
