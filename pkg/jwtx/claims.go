package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type discriminators. Session tokens and magic-link tokens share the
// signing secret, so every token carries an explicit "type" claim to stop
// one kind being replayed as the other.
const (
	TokenTypeSession   = "session"
	TokenTypeMagicLink = "magic_link"
)

// DefaultSessionTokenTTL is the default lifetime of a session bearer token.
const DefaultSessionTokenTTL = 7 * 24 * time.Hour

// Claims are the session-token claims shared across the portal. Additive
// changes only, to preserve compatibility with already-issued tokens.
type Claims struct {
	jwt.RegisteredClaims

	// SID is the public session identifier (distinct from the row id).
	SID string `json:"sid,omitempty"`

	// Email is the normalized (lowercased, trimmed) account email.
	Email string `json:"email,omitempty"`

	// Role is the portal role: borrower, admin or super-admin.
	Role string `json:"role,omitempty"`

	// LoanIDs scopes the session to specific loan files.
	LoanIDs []string `json:"loan_ids,omitempty"`

	// TokenType discriminates session tokens from magic-link tokens.
	TokenType string `json:"type,omitempty"`
}

// NewSessionClaims builds minimally-correct claims for a session token.
func NewSessionClaims(
	userID, sid, email, role string,
	loanIDs []string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		SID:       sid,
		Email:     email,
		Role:      role,
		LoanIDs:   loanIDs,
		TokenType: TokenTypeSession,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
