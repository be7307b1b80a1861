package auth

import "errors"

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can read but never write.
	RoleViewer Role = "viewer"

	// RoleOperator can also write attributes.
	RoleOperator Role = "operator"
)

// ValidRoles lists every role a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator}

// IsValidRole returns true if r is a known role.
func IsValidRole(r Role) bool {
	for _, valid := range ValidRoles {
		if r == valid {
			return true
		}
	}
	return false
}

// Sentinel errors.
var (
	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrInvalidRole  = errors.New("auth: invalid role")
	ErrNoSecret     = errors.New("auth: signing secret is required")
	ErrForbidden    = errors.New("auth: insufficient permissions")
)
