package domain

import "time"

const (
	// CodeLength is the number of digits in an emailed verification code.
	CodeLength = 6

	// CodeTTL is how long a code stays redeemable after issue.
	CodeTTL = 10 * time.Minute

	// MaxCodeAttempts is the per-code attempt ceiling.
	MaxCodeAttempts = 5
)

// VerificationCode is a single-use 2FA code bound to one AuthSession. Only
// the hash is stored; at most one live code exists per session (issuing a
// new one supersedes the old). Logically dead once used, expired, or out of
// attempts.
type VerificationCode struct {
	ID           string // ULID
	SessionID    string // AuthSession row id, 1:1 for the live code
	CodeHash     string // hex SHA-256 of the plaintext digits
	ExpiresAt    time.Time
	AttemptCount int
	MaxAttempts  int
	IsUsed       bool
	UsedAt       *time.Time
	CreatedAt    time.Time
}

// Exhausted reports whether the attempt ceiling has been reached.
func (c VerificationCode) Exhausted() bool {
	return c.AttemptCount >= c.MaxAttempts
}
