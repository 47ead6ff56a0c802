package access

// Permission is a named capability gated to a subset of roles.
type Permission string

const (
	PermManageCompany      Permission = "manage_company"
	PermManageTeam         Permission = "manage_team"
	PermManagePricing      Permission = "manage_pricing"
	PermViewSettings       Permission = "view_settings"
	PermManageSubscription Permission = "manage_subscription"

	PermCreateQuotes Permission = "create_quotes"
	PermViewQuotes   Permission = "view_quotes"
	PermEditQuotes   Permission = "edit_quotes"
	PermSendQuotes   Permission = "send_quotes"
	PermDeleteQuotes Permission = "delete_quotes"

	PermViewCalendar Permission = "view_calendar"
	PermEditCalendar Permission = "edit_calendar"

	PermScheduleJobs Permission = "schedule_jobs"
	PermCompleteJobs Permission = "complete_jobs"
	PermAssignJobs   Permission = "assign_jobs"

	PermViewPayments   Permission = "view_payments"
	PermMarkPaid       Permission = "mark_paid"
	PermTriggerInvoice Permission = "trigger_invoice"

	PermViewAuditLog Permission = "view_audit_log"
)

// AllPermissions lists every defined permission.
func AllPermissions() []Permission {
	return []Permission{
		PermManageCompany, PermManageTeam, PermManagePricing, PermViewSettings,
		PermManageSubscription, PermCreateQuotes, PermViewQuotes, PermEditQuotes,
		PermSendQuotes, PermDeleteQuotes, PermViewCalendar, PermEditCalendar,
		PermScheduleJobs, PermCompleteJobs, PermAssignJobs, PermViewPayments,
		PermMarkPaid, PermTriggerInvoice, PermViewAuditLog,
	}
}

// IsValid reports whether the permission is one of the defined values.
// Used when decoding permission names at an API boundary; internal callers
// always use the typed constants.
func (p Permission) IsValid() bool {
	for _, known := range AllPermissions() {
		if p == known {
			return true
		}
	}
	return false
}

// PermissionSet is the set of permissions granted to a role.
type PermissionSet map[Permission]bool

// Has reports whether the set contains the permission.
func (s PermissionSet) Has(p Permission) bool {
	return s[p]
}

// Table is the static role-to-permission mapping. It is built once at
// startup and never mutated afterwards; callers treat returned sets as
// read-only.
type Table struct {
	grants map[Permission][]Role
	byRole map[Role]PermissionSet
}

// NewTable builds the permission table. The mapping is fixed configuration
// data: a small, stable set of job functions with O(1) authorization checks
// and no database round-trip once the role is known.
func NewTable() *Table {
	grants := map[Permission][]Role{
		PermManageCompany:      {RoleOwner},
		PermManageTeam:         {RoleOwner, RoleAdmin},
		PermManagePricing:      {RoleOwner, RoleAdmin},
		PermViewSettings:       {RoleOwner, RoleAdmin},
		PermManageSubscription: {RoleOwner},

		PermCreateQuotes: {RoleOwner, RoleAdmin, RoleSales},
		PermViewQuotes:   {RoleOwner, RoleAdmin, RoleSales, RoleAccountant, RoleMember},
		PermEditQuotes:   {RoleOwner, RoleAdmin, RoleSales},
		PermSendQuotes:   {RoleOwner, RoleAdmin, RoleSales},
		PermDeleteQuotes: {RoleOwner},

		PermViewCalendar: {RoleOwner, RoleAdmin, RoleSales, RoleTechnician, RoleMember},
		PermEditCalendar: {RoleOwner, RoleAdmin, RoleSales},

		PermScheduleJobs: {RoleOwner, RoleAdmin},
		PermCompleteJobs: {RoleOwner, RoleAdmin, RoleTechnician},
		PermAssignJobs:   {RoleOwner, RoleAdmin},

		PermViewPayments:   {RoleOwner, RoleAdmin, RoleAccountant},
		PermMarkPaid:       {RoleOwner, RoleAdmin, RoleAccountant},
		PermTriggerInvoice: {RoleOwner, RoleAdmin, RoleAccountant, RoleTechnician},

		PermViewAuditLog: {RoleOwner, RoleAdmin, RoleAccountant},
	}

	byRole := make(map[Role]PermissionSet, len(AllRoles()))
	for _, role := range AllRoles() {
		byRole[role] = make(PermissionSet)
	}
	for perm, roles := range grants {
		for _, role := range roles {
			byRole[role][perm] = true
		}
	}

	return &Table{grants: grants, byRole: byRole}
}

// PermissionsFor returns the permission set for a role. It is total: an
// empty or unknown role yields the empty, most-restrictive set.
func (t *Table) PermissionsFor(role Role) PermissionSet {
	set, ok := t.byRole[role]
	if !ok {
		return PermissionSet{}
	}
	return set
}

// HasPermission reports whether the role is granted the permission.
// Absence of a mapping defaults to not permitted.
func (t *Table) HasPermission(role Role, perm Permission) bool {
	return t.PermissionsFor(role).Has(perm)
}

// Roles returns the roles granted a permission, in privilege order.
func (t *Table) Roles(perm Permission) []Role {
	return t.grants[perm]
}

// CanViewCalendar reports whether the role may view the team calendar.
// Derived from the table; no parallel logic.
func (t *Table) CanViewCalendar(role Role) bool {
	return t.HasPermission(role, PermViewCalendar)
}
