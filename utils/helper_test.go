package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePhoneNumber(t *testing.T) {
	got, err := NormalizePhoneNumber("(650) 253-0000", "US")
	require.NoError(t, err)
	require.Equal(t, "+16502530000", got)

	got, err = NormalizePhoneNumber("+1 650 253 0000", "MM")
	require.NoError(t, err)
	require.Equal(t, "+16502530000", got)

	_, err = NormalizePhoneNumber("12345", "US")
	require.Error(t, err)

	_, err = NormalizePhoneNumber("  ", "US")
	require.Error(t, err)
}

func TestIsValidEmail(t *testing.T) {
	require.True(t, IsValidEmail("owner@example.com"))
	require.False(t, IsValidEmail("owner@example"))
	require.False(t, IsValidEmail("not an email"))
}

func TestUniqueSliceKeepsOrder(t *testing.T) {
	require.Equal(t, []int{3, 1, 2}, UniqueSlice([]int{3, 1, 3, 2, 1}))
}

func TestSplitAndTrim(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, SplitAndTrim(" a, ,b "))
	require.Nil(t, SplitAndTrim("  "))
}
