package domain

import "time"

// SessionStatus is the lifecycle state of an AuthSession. Transitions only
// move forward: pending -> verified/active, and -> expired/revoked from any
// non-terminal state. A session never reverts.
type SessionStatus string

const (
	SessionPending  SessionStatus = "pending"
	SessionVerified SessionStatus = "verified"
	SessionActive   SessionStatus = "active"
	SessionExpired  SessionStatus = "expired"
	SessionRevoked  SessionStatus = "revoked"
)

// Terminal reports whether no further forward transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == SessionExpired || s == SessionRevoked
}

// AuthSession is the portal's own expirable authorization record, layered
// on top of an external identity confirmation. The external provider stays
// the source of truth for "is this human verified"; the session is the
// cached, expirable decision on top.
type AuthSession struct {
	ID                 string // ULID row id
	SessionID          string // public opaque identifier (UUID), embedded in tokens
	UserID             string
	EmailHash          string // SHA-256 of the normalized email; plaintext is never stored here
	ExternalIdentityID string
	LoanIDs            []string // ordered loan-file scoping, serialized in the store
	Status             SessionStatus
	TokenHash          string // fingerprint of the minted session token, set on verification
	ExpiresAt          time.Time
	VerifiedAt         *time.Time
	LastAccessedAt     *time.Time
	IPAddress          string
	UserAgent          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsLive reports whether the session authorizes requests at the given
// instant. Expiry is computed here rather than trusting the stored status,
// so a lapsed TTL takes effect without waiting for a background sweep.
func (s AuthSession) IsLive(now time.Time) bool {
	if s.Status != SessionVerified && s.Status != SessionActive {
		return false
	}
	return !now.After(s.ExpiresAt)
}

// EffectiveStatus returns the stored status overlaid with computed expiry.
func (s AuthSession) EffectiveStatus(now time.Time) SessionStatus {
	if !s.Status.Terminal() && now.After(s.ExpiresAt) {
		return SessionExpired
	}
	return s.Status
}
