package domain

import "fmt"

// Role is the permission level an identity holds on a host.
// Roles form a total order Viewer < Operator < Admin < Owner and every
// comparison goes through the declared ordinal, never through names or
// declaration position.
type Role int

const (
	RoleViewer   Role = 0 // view status and instances
	RoleOperator Role = 1 // + start/stop/restart/scale/broadcast
	RoleAdmin    Role = 2 // + read/write configuration
	RoleOwner    Role = 3 // + delete host, manage grants, see the agent key
)

// AtLeast reports whether r grants the privileges of required.
func (r Role) AtLeast(required Role) bool {
	return r >= required
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r >= RoleViewer && r <= RoleOwner
}

func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "Viewer"
	case RoleOperator:
		return "Operator"
	case RoleAdmin:
		return "Admin"
	case RoleOwner:
		return "Owner"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole accepts either a role name or its ordinal ("2" == "Admin").
func ParseRole(s string) (Role, error) {
	switch s {
	case "Viewer", "viewer", "0":
		return RoleViewer, nil
	case "Operator", "operator", "1":
		return RoleOperator, nil
	case "Admin", "admin", "2":
		return RoleAdmin, nil
	case "Owner", "owner", "3":
		return RoleOwner, nil
	default:
		return RoleViewer, Ef(KindInvalid, "unknown role %q", s)
	}
}
