// Package mailer delivers sign-in links and verification codes by email.
package mailer

import "context"

// Mailer sends borrower-facing auth emails. Implementations must never
// log or persist the plaintext code or link URL beyond sending.
type Mailer interface {
	// SendMagicLink emails a one-time sign-in URL.
	SendMagicLink(ctx context.Context, to, magicLinkURL string, ttlHours int) error

	// SendVerificationCode emails a short-lived numeric code.
	SendVerificationCode(ctx context.Context, to, code string, ttlMinutes int) error
}
