package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionIsLive(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	cases := []struct {
		name   string
		status SessionStatus
		expiry time.Time
		want   bool
	}{
		{"pending never authorizes", SessionPending, future, false},
		{"verified and unexpired", SessionVerified, future, true},
		{"active and unexpired", SessionActive, future, true},
		{"verified but lapsed", SessionVerified, past, false},
		{"revoked", SessionRevoked, future, false},
		{"expired", SessionExpired, future, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := AuthSession{Status: tc.status, ExpiresAt: tc.expiry}
			require.Equal(t, tc.want, s.IsLive(now))
		})
	}
}

func TestEffectiveStatusComputesExpiry(t *testing.T) {
	now := time.Now()

	s := AuthSession{Status: SessionVerified, ExpiresAt: now.Add(-time.Minute)}
	require.Equal(t, SessionExpired, s.EffectiveStatus(now))

	// Terminal statuses are never rewritten.
	s = AuthSession{Status: SessionRevoked, ExpiresAt: now.Add(-time.Minute)}
	require.Equal(t, SessionRevoked, s.EffectiveStatus(now))

	s = AuthSession{Status: SessionPending, ExpiresAt: now.Add(time.Minute)}
	require.Equal(t, SessionPending, s.EffectiveStatus(now))
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "a@b.com", NormalizeEmail("  A@B.Com "))
}

func TestRoleElevated(t *testing.T) {
	require.False(t, RoleBorrower.Elevated())
	require.True(t, RoleAdmin.Elevated())
	require.True(t, RoleSuperAdmin.Elevated())
	require.False(t, Role("ghost").Valid())
}
