package access

import (
	"fmt"
	"strings"

	"fieldbooking/internal/models"
)

// Role is a caller's level in the staff hierarchy. Higher values include lower ones.
type Role int

const (
	RoleGuest Role = iota + 1
	RoleCustomer
	RoleCashier
	RoleOperator
	RoleManager
	RoleSupervisor
)

var roleNames = map[Role]string{
	RoleGuest:      "guest",
	RoleCustomer:   "customer",
	RoleCashier:    "cashier",
	RoleOperator:   "operator",
	RoleManager:    "manager",
	RoleSupervisor: "supervisor",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// IsValid reports whether r is one of the six known levels.
func (r Role) IsValid() bool {
	return r >= RoleGuest && r <= RoleSupervisor
}

// AtLeast reports whether r satisfies the minimum level.
func (r Role) AtLeast(floor Role) bool {
	return r >= floor
}

// IsStaff reports whether r is cashier or above.
func (r Role) IsStaff() bool {
	return r >= RoleCashier
}

// ParseRole maps a stored role name to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "guest":
		return RoleGuest, nil
	case "customer", "user":
		return RoleCustomer, nil
	case "cashier", "kasir":
		return RoleCashier, nil
	case "operator", "field_operator":
		return RoleOperator, nil
	case "manager":
		return RoleManager, nil
	case "supervisor", "admin":
		return RoleSupervisor, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// minRole is the permission table: the lowest role allowed to request each transition.
var minRole = map[models.Action]Role{
	models.ActionCreate:   RoleCustomer,
	models.ActionConfirm:  RoleOperator,
	models.ActionReject:   RoleOperator,
	models.ActionCancel:   RoleCashier,
	models.ActionComplete: RoleOperator,
}

// MinRole returns the lowest role allowed to request action.
func MinRole(action models.Action) (Role, bool) {
	r, ok := minRole[action]
	return r, ok
}

// IsPermitted answers whether role may request action. Ownership is not
// considered here; owners may always cancel their own bookings.
func IsPermitted(role Role, action models.Action) bool {
	floor, ok := minRole[action]
	if !ok {
		return false
	}
	return role.AtLeast(floor)
}

// IsPermittedFor extends IsPermitted with the owner rule for cancellation.
func IsPermittedFor(role Role, action models.Action, isOwner bool) bool {
	if action == models.ActionCancel && isOwner {
		return true
	}
	return IsPermitted(role, action)
}

// Policy is the permission table as a value usable by the booking core.
type Policy struct{}

func (Policy) IsPermitted(role Role, action models.Action, isOwner bool) bool {
	return IsPermittedFor(role, action, isOwner)
}
