package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	t.Parallel()

	t.Run("correct length and digits only", func(t *testing.T) {
		for range 100 {
			code, err := GenerateCode(6)
			require.NoError(t, err)
			require.Len(t, code, 6)
			for _, r := range code {
				require.True(t, r >= '0' && r <= '9', "unexpected rune %q in %q", r, code)
			}
		}
	})

	t.Run("zero-pads short values", func(t *testing.T) {
		// With a single digit, roughly every run covers 0-9; just verify
		// the length invariant holds for many draws.
		for range 50 {
			code, err := GenerateCode(1)
			require.NoError(t, err)
			require.Len(t, code, 1)
		}
	})

	t.Run("rejects invalid lengths", func(t *testing.T) {
		_, err := GenerateCode(0)
		require.Error(t, err)
		_, err = GenerateCode(-3)
		require.Error(t, err)
		_, err = GenerateCode(19)
		require.Error(t, err)
	})
}

func TestFingerprintToken(t *testing.T) {
	t.Parallel()

	fp := FingerprintToken("opaque-value")
	require.Equal(t, fp, FingerprintToken("opaque-value"))
	require.NotEqual(t, fp, FingerprintToken("other-value"))
	require.Len(t, fp, 43)
}
