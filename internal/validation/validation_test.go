package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateSlug(t *testing.T) {
	require.NoError(t, ValidateSlug("acme"))
	require.NoError(t, ValidateSlug("acme-field-service"))
	require.NoError(t, ValidateSlug("a1b"))

	require.ErrorIs(t, ValidateSlug("ab"), ErrSlugTooShort)
	require.ErrorIs(t, ValidateSlug(string(make([]byte, 70))), ErrSlugTooLong)
	require.ErrorIs(t, ValidateSlug("-acme"), ErrInvalidSlug)
	require.ErrorIs(t, ValidateSlug("acme-"), ErrInvalidSlug)
	require.ErrorIs(t, ValidateSlug("ac_me"), ErrInvalidSlug)
}

func TestNormalizeSlug(t *testing.T) {
	require.Equal(t, "acme", NormalizeSlug("  ACME "))
}

func TestParseTimestamp(t *testing.T) {
	parsed, err := ParseTimestamp("2026-03-01T09:00:00Z")
	require.NoError(t, err)
	require.Equal(t, 2026, parsed.Year())

	_, err = ParseTimestamp("")
	require.Error(t, err)

	_, err = ParseTimestamp("yesterday")
	require.Error(t, err)
}

func TestValidatePaymentMethod(t *testing.T) {
	require.NoError(t, ValidatePaymentMethod(""))
	require.NoError(t, ValidatePaymentMethod("card"))
	require.Error(t, ValidatePaymentMethod(string(make([]byte, 80))))
}
