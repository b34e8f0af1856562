package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNumericCodeLengthAndCharset(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NumericCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9', "unexpected rune %q in %q", r, code)
		}
	}
}

func TestNumericCodeRejectsBadLength(t *testing.T) {
	_, err := NumericCode(0)
	require.Error(t, err)

	_, err = NumericCode(19)
	require.Error(t, err)
}

func TestOpaqueUniqueness(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		v, err := Opaque()
		require.NoError(t, err)
		require.NotEmpty(t, v)

		_, dup := seen[v]
		require.False(t, dup, "duplicate token %q", v)
		seen[v] = struct{}{}
	}
}
