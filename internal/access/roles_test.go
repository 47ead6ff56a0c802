package access

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestParseRole_CanonicalValues(t *testing.T) {
	for _, role := range AllRoles() {
		parsed, err := ParseRole(string(role))
		require.NoError(t, err)
		require.Equal(t, role, parsed)
	}
}

func TestParseRole_NormalizesCaseAndWhitespace(t *testing.T) {
	parsed, err := ParseRole("  Owner ")
	require.NoError(t, err)
	require.Equal(t, RoleOwner, parsed)
}

func TestParseRole_LegacyOfficeMapsToAdmin(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	parsed, err := ParseRole("office")
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, parsed)

	// The translation is never silent.
	require.Contains(t, buf.String(), `"role":"office"`)
	require.Contains(t, buf.String(), `"translated_to":"admin"`)

	buf.Reset()
	_, err = ParseRole("admin")
	require.NoError(t, err)
	require.Empty(t, buf.String())
}

func TestParseRole_RejectsUnknownValues(t *testing.T) {
	_, err := ParseRole("manager")
	require.ErrorIs(t, err, ErrInvalidRole)

	_, err = ParseRole("")
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestRole_Predicates(t *testing.T) {
	require.True(t, RoleOwner.IsOwner())
	require.False(t, RoleAdmin.IsOwner())
	require.True(t, RoleAdmin.IsAdmin())
	require.True(t, RoleTechnician.IsTechnician())
	require.False(t, RoleSales.IsTechnician())
}

func TestRole_IsValid(t *testing.T) {
	for _, role := range AllRoles() {
		require.True(t, role.IsValid())
	}
	require.False(t, Role("office").IsValid(), "legacy value is only accepted through ParseRole")
	require.False(t, Role("").IsValid())
}
