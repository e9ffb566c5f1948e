package domain

type Role string

const (
	RoleUser       Role = "user"
	RoleOwner      Role = "owner"
	RoleCourier    Role = "deliveryBoy"
	RoleSuperAdmin Role = "superadmin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleOwner, RoleCourier, RoleSuperAdmin:
		return Role(s), true
	}
	return "", false
}

// Actor is the authenticated caller of an operation. It is resolved outside
// the order core and trusted as given.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) Is(role Role, id string) bool {
	return a.Role == role && a.ID == id
}
