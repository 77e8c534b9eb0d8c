package domain

import "time"

// Rate-limited action types. The (identifier, action) pair is the full
// rate-limit key; counters are never queried across keys.
const (
	ActionMagicLinkRequest = "magic_link_request"
	ActionCodeSend         = "verification_code_send"
	ActionCodeVerify       = "verification_code_verify"
)

// RateLimit is the persisted attempt counter for one (identifier, action)
// key. The window restarts when it elapses; the key is blocked once the
// count exceeds its limit.
type RateLimit struct {
	Identifier      string
	Action          string
	AttemptCount    int
	WindowStartedAt time.Time
	BlockedUntil    *time.Time
	UpdatedAt       time.Time
}

// RateLimitDecision is the outcome of a check-and-increment.
type RateLimitDecision struct {
	Allowed    bool
	RetryAfter time.Duration // set when blocked
}
