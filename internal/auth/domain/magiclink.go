package domain

import "time"

// Magic-link TTL bounds in hours. Callers pick the TTL; anything outside
// the range is rejected.
const (
	MagicLinkMinTTLHours     = 1
	MagicLinkMaxTTLHours     = 168
	MagicLinkDefaultTTLHours = 48
)

// MagicLink tracks a one-time sign-in URL issued by the identity provider.
// The URL itself is minted upstream; this record carries the local
// lifecycle: send counts, revocation and use. Terminal once used or revoked.
type MagicLink struct {
	ID           string // ULID
	UserID       string
	SessionID    string // row id of the AuthSession opened alongside this link
	MagicLinkURL string
	ExpiresAt    time.Time
	SendCount    int
	LastSentAt   *time.Time
	UsedAt       *time.Time
	RevokedAt    *time.Time
	RevokedBy    string
	RevokeReason string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Extendable reports whether the link's expiry may still be moved.
func (m MagicLink) Extendable() bool {
	return m.IsActive && m.UsedAt == nil
}
