package jwtx

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret, "loandocs-auth", []string{"loandocs-portal"})
	require.NoError(t, err)
	return c
}

func testClaims(ttl time.Duration) Claims {
	return NewSessionClaims(
		"01JCAFE0USER00000000000000",
		"9f2d7c58-1b1f-4b0e-9c2d-3a9f64d21d11",
		"borrower@example.com",
		"borrower",
		[]string{"loan-100", "loan-200"},
		ttl,
		"loandocs-auth",
		[]string{"loandocs-portal"},
		time.Now(),
	)
}

func TestNewCodecRejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewCodec("too-short", "iss", nil)
	require.ErrorIs(t, err, ErrShortSecret)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	in := testClaims(time.Hour)
	token, err := c.Sign(in)
	require.NoError(t, err)
	require.Equal(t, 3, len(strings.Split(token, ".")))

	out, err := c.Verify(token, TokenTypeSession)
	require.NoError(t, err)
	require.Equal(t, in.Subject, out.Subject)
	require.Equal(t, in.SID, out.SID)
	require.Equal(t, in.Email, out.Email)
	require.Equal(t, in.Role, out.Role)
	require.Equal(t, in.LoanIDs, out.LoanIDs)
	require.Equal(t, TokenTypeSession, out.TokenType)
}

func TestVerifyFailsClosed(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	t.Run("expired token", func(t *testing.T) {
		token, err := c.Sign(testClaims(-time.Minute))
		require.NoError(t, err)
		_, err = c.Verify(token, TokenTypeSession)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong token type", func(t *testing.T) {
		claims := testClaims(time.Hour)
		claims.TokenType = TokenTypeMagicLink
		token, err := c.Sign(claims)
		require.NoError(t, err)
		_, err = c.Verify(token, TokenTypeSession)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := testClaims(time.Hour)
		claims.Issuer = "someone-else"
		token, err := c.Sign(claims)
		require.NoError(t, err)
		_, err = c.Verify(token, TokenTypeSession)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := testClaims(time.Hour)
		claims.Audience = []string{"other-app"}
		token, err := c.Sign(claims)
		require.NoError(t, err)
		_, err = c.Verify(token, TokenTypeSession)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewCodec("ffffffffffffffffffffffffffffffff", "loandocs-auth", []string{"loandocs-portal"})
		require.NoError(t, err)
		token, err := other.Sign(testClaims(time.Hour))
		require.NoError(t, err)
		_, err = c.Verify(token, TokenTypeSession)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := c.Verify("not.a.jwt", TokenTypeSession)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}
