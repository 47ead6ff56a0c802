package access

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTable_HasPermissionMatchesGrants(t *testing.T) {
	table := NewTable()

	for _, perm := range AllPermissions() {
		granted := make(map[Role]bool)
		for _, role := range table.Roles(perm) {
			granted[role] = true
		}

		for _, role := range AllRoles() {
			require.Equal(t, granted[role], table.HasPermission(role, perm),
				"role %s permission %s", role, perm)
		}
	}
}

func TestTable_EmptyRoleHasNoPermissions(t *testing.T) {
	table := NewTable()

	for _, perm := range AllPermissions() {
		require.False(t, table.HasPermission("", perm))
	}

	require.Empty(t, table.PermissionsFor(""))
}

func TestTable_UnknownRoleHasNoPermissions(t *testing.T) {
	table := NewTable()

	require.Empty(t, table.PermissionsFor("superuser"))
	require.False(t, table.HasPermission("superuser", PermManageCompany))
}

func TestTable_PermissionsForMatchesHasPermission(t *testing.T) {
	table := NewTable()

	for _, role := range AllRoles() {
		set := table.PermissionsFor(role)
		for _, perm := range AllPermissions() {
			require.Equal(t, table.HasPermission(role, perm), set.Has(perm))
		}
	}
}

func TestTable_OwnerHasEveryPermission(t *testing.T) {
	table := NewTable()

	for _, perm := range AllPermissions() {
		require.True(t, table.HasPermission(RoleOwner, perm), "owner lacks %s", perm)
	}
}

func TestTable_CanViewCalendarDerivedFromTable(t *testing.T) {
	table := NewTable()

	for _, role := range AllRoles() {
		require.Equal(t, table.HasPermission(role, PermViewCalendar), table.CanViewCalendar(role))
	}
	require.False(t, table.CanViewCalendar(""))
}

func TestPermission_IsValid(t *testing.T) {
	for _, perm := range AllPermissions() {
		require.True(t, perm.IsValid())
	}
	require.False(t, Permission("launch_rockets").IsValid())
	require.False(t, Permission("").IsValid())
}
