// Package access defines the canonical role set and the static permission
// table, and provides the authorization checks used by the HTTP guards and
// the work-item transition services.
package access

import (
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
)

// Role is a user's job-function classification within a company.
type Role string

const (
	RoleOwner      Role = "owner"
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
	RoleSales      Role = "sales"
	RoleAccountant Role = "accountant"
	RoleMember     Role = "member"
)

// legacyRoleOffice is the pre-migration name for the operations-manager
// role. It is accepted on input and translated to RoleAdmin; it is never
// stored or emitted.
const legacyRoleOffice = "office"

// ErrInvalidRole is returned when a role value is not in the canonical set.
var ErrInvalidRole = errors.New("invalid role")

// AllRoles lists the canonical role set in privilege order.
func AllRoles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleTechnician, RoleSales, RoleAccountant, RoleMember}
}

// IsValid reports whether the role is one of the canonical values.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleTechnician, RoleSales, RoleAccountant, RoleMember:
		return true
	}
	return false
}

// IsOwner reports whether the role is the company owner.
func (r Role) IsOwner() bool {
	return r == RoleOwner
}

// IsAdmin reports whether the role is an administrator.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// IsTechnician reports whether the role is a technician.
func (r Role) IsTechnician() bool {
	return r == RoleTechnician
}

// ParseRole normalizes a raw role string to a canonical Role.
// The legacy value "office" maps to RoleAdmin; this is the one sanctioned
// translation for memberships created before the role migration.
func ParseRole(raw string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))

	if normalized == legacyRoleOffice {
		log.Warn().
			Str("role", normalized).
			Str("translated_to", string(RoleAdmin)).
			Msg("Legacy role value translated")
		return RoleAdmin, nil
	}

	role := Role(normalized)
	if !role.IsValid() {
		return "", ErrInvalidRole
	}
	return role, nil
}

// DisplayName returns the user-facing name for a role.
func (r Role) DisplayName() string {
	switch r {
	case RoleOwner:
		return "Owner"
	case RoleAdmin:
		return "Admin"
	case RoleTechnician:
		return "Technician"
	case RoleSales:
		return "Sales"
	case RoleAccountant:
		return "Accountant"
	case RoleMember:
		return "Member"
	}
	return string(r)
}

// Description returns a short summary of what a role can do.
func (r Role) Description() string {
	switch r {
	case RoleOwner:
		return "Full access to all features and settings"
	case RoleAdmin:
		return "Manage leads, quotes, calendar, jobs, and the team"
	case RoleTechnician:
		return "View and complete assigned jobs"
	case RoleSales:
		return "Create and manage own leads and quotes"
	case RoleAccountant:
		return "View payments and record invoices"
	case RoleMember:
		return "Read-only access to quotes and the calendar"
	}
	return ""
}
