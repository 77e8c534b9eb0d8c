package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	t.Parallel()

	t.Run("deterministic hex digest", func(t *testing.T) {
		a := Hash("borrower@example.com")
		b := Hash("borrower@example.com")
		require.Equal(t, a, b)
		require.Len(t, a, 64)
		require.Equal(t, strings.ToLower(a), a)
	})

	t.Run("distinct inputs produce distinct digests", func(t *testing.T) {
		require.NotEqual(t, Hash("a"), Hash("b"))
	})

	t.Run("known vector", func(t *testing.T) {
		// sha256("") is well known.
		require.Equal(t,
			"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
			Hash(""),
		)
	})
}

func TestTimingSafeEqual(t *testing.T) {
	t.Parallel()

	require.False(t, TimingSafeEqual("abc", "abd"))
	require.False(t, TimingSafeEqual("abc", "ab"))
	require.False(t, TimingSafeEqual("", "x"))
	require.True(t, TimingSafeEqual("", ""))

	for _, s := range []string{"x", "hello world", "123456"} {
		require.True(t, TimingSafeEqual(Hash(s), Hash(s)))
	}
}
