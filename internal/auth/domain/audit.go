package domain

import "time"

// Audit event types emitted by the auth flows.
const (
	AuditMagicLinkIssued   = "magic_link_issued"
	AuditMagicLinkResent   = "magic_link_resent"
	AuditMagicLinkRevoked  = "magic_link_revoked"
	AuditMagicLinkExtended = "magic_link_extended"
	AuditSessionExchanged  = "session_exchanged"
	AuditSessionRevoked    = "session_revoked"
	AuditCodeIssued        = "verification_code_issued"
	AuditCodeVerified      = "verification_code_verified"
	AuditCodeRejected      = "verification_code_rejected"
	AuditTokenValidated    = "session_token_validated"
	AuditTokenRefreshed    = "session_token_refreshed"
	AuditRateLimited       = "rate_limited"
)

// AuditEvent is an append-only record of an auth-relevant event. The
// internal failure reason lives here; API responses stay generic.
type AuditEvent struct {
	ID           string // ULID
	SessionID    string // AuthSession row id, may be empty
	UserID       string // may be empty
	EventType    string
	Success      bool
	ErrorMessage string
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
}
