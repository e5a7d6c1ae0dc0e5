// Package actor models who performs a quote operation: a staff member
// signed into the back office, or an anonymous customer holding a token.
package actor

import "strings"

// Role is the privilege tier of an internal user.
type Role int

const (
	RoleNone Role = iota
	// RoleEditor can view and list quotes but not change them.
	RoleEditor
	// RoleAdmin can create, edit and send quotes and artwork.
	RoleAdmin
	// RoleSuperAdmin can additionally delete, archive and remove artwork.
	RoleSuperAdmin
)

// ParseRole maps a profile name onto a role. Unknown names map to RoleNone.
func ParseRole(name string) Role {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "EDITOR":
		return RoleEditor
	case "ADMIN":
		return RoleAdmin
	case "SUPER_ADMIN":
		return RoleSuperAdmin
	}
	return RoleNone
}

func (r Role) String() string {
	switch r {
	case RoleEditor:
		return "EDITOR"
	case RoleAdmin:
		return "ADMIN"
	case RoleSuperAdmin:
		return "SUPER_ADMIN"
	}
	return "NONE"
}

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool { return r >= min }

// Actor is either Internal or Customer.
type Actor interface {
	isActor()
	// Label is a short human readable name used in logs.
	Label() string
}

// Internal is a signed-in staff member.
type Internal struct {
	ID    uint
	Name  string
	Email string
	Role  Role
}

func (Internal) isActor() {}

func (a Internal) Label() string {
	if a.Email != "" {
		return a.Email
	}
	return a.Name
}

// Customer is an anonymous visitor authorised only by a quote or artwork token.
type Customer struct{}

func (Customer) isActor() {}

func (Customer) Label() string { return "customer" }
