package store

import (
	"context"
	"errors"
	"time"

	"github.com/loandocs/loandocs/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable, and is the serialization point for all auth state:
// request handlers hold no shared mutable state of their own.
type Store interface {
	Users() Users
	Sessions() Sessions
	MagicLinks() MagicLinks
	VerificationCodes() VerificationCodes
	RateLimits() RateLimits
	AuditLogs() AuditLogs

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing on nil and
	// rolling back on error. Preferred over Tx for multi-step writes
	// that must be atomic (e.g. session + magic link creation).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by row id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks a user up by normalized email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the argon2id hash and bumps updated_at.
	// An empty hash clears the password.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
}

type Sessions interface {
	// CreateSession inserts a new auth session in pending state.
	CreateSession(ctx context.Context, s domain.AuthSession) error

	// GetSessionByID returns a session by row id.
	GetSessionByID(ctx context.Context, id string) (domain.AuthSession, error)

	// GetSessionBySessionID returns a session by its public identifier.
	GetSessionBySessionID(ctx context.Context, sessionID string) (domain.AuthSession, error)

	// GetLatestSessionByIdentity returns the most recently created session
	// for an (externalIdentityID, emailHash) pair. Sessions are never
	// created from a bare identity assertion, so absence is ErrNotFound.
	GetLatestSessionByIdentity(ctx context.Context, externalIdentityID, emailHash string) (domain.AuthSession, error)

	// CompleteVerification advances a pending session to the given live
	// status and records the token fingerprint. The update is conditional
	// on the stored status still being pending; ErrNotFound reports a
	// lost race or an illegal transition.
	CompleteVerification(ctx context.Context, id string, status domain.SessionStatus, verifiedAt time.Time, tokenHash string) error

	// UpdateSessionExpiry moves expires_at (magic-link extension keeps
	// link and session TTL in lockstep).
	UpdateSessionExpiry(ctx context.Context, id string, expiresAt time.Time) error

	// TouchSession updates last_accessed_at only; never the TTL.
	TouchSession(ctx context.Context, id string, at time.Time) error

	// RevokeSession marks a non-terminal session revoked. Idempotent:
	// revoking an already-revoked session is a no-op.
	RevokeSession(ctx context.Context, id string, at time.Time) error

	// ExpireLapsedSessions writes status=expired onto non-terminal
	// sessions whose TTL has passed. Housekeeping only; correctness never
	// depends on it because expiry is computed at read time.
	ExpireLapsedSessions(ctx context.Context, now time.Time) (int64, error)
}

type MagicLinks interface {
	// CreateMagicLink inserts a link referencing an existing session.
	CreateMagicLink(ctx context.Context, m domain.MagicLink) error

	// GetMagicLinkByID returns a link by row id.
	GetMagicLinkByID(ctx context.Context, id string) (domain.MagicLink, error)

	// GetActiveMagicLinkBySessionID returns the live link that opened the
	// given session, if any.
	GetActiveMagicLinkBySessionID(ctx context.Context, sessionID string) (domain.MagicLink, error)

	// RecordMagicLinkSend increments send_count and stamps last_sent_at,
	// conditional on the link still being active and unused.
	RecordMagicLinkSend(ctx context.Context, id string, at time.Time) error

	// MarkMagicLinkUsed stamps used_at and deactivates, conditional on
	// the link not already being used or revoked.
	MarkMagicLinkUsed(ctx context.Context, id string, at time.Time) error

	// RevokeMagicLink deactivates a link. Idempotent on already-revoked
	// links.
	RevokeMagicLink(ctx context.Context, id, revokedBy, reason string, at time.Time) error

	// ExtendMagicLink moves expires_at, conditional on active and unused.
	ExtendMagicLink(ctx context.Context, id string, expiresAt time.Time) error
}

type VerificationCodes interface {
	// CreateVerificationCode stores a freshly hashed code.
	CreateVerificationCode(ctx context.Context, c domain.VerificationCode) error

	// GetLatestCodeBySessionID returns the newest code row for a session,
	// used or not. ErrNotFound when the session never had a code.
	GetLatestCodeBySessionID(ctx context.Context, sessionID string) (domain.VerificationCode, error)

	// DeleteUnusedCodesBySessionID removes superseded unused codes so at
	// most one live code exists per session.
	DeleteUnusedCodesBySessionID(ctx context.Context, sessionID string) error

	// IncrementCodeAttempts atomically bumps attempt_count, conditional
	// on the code being unused and under its ceiling, and returns the new
	// count. ErrNotFound reports a lost race (used/exhausted meanwhile).
	IncrementCodeAttempts(ctx context.Context, id string) (int, error)

	// MarkCodeUsed atomically consumes the code. ErrNotFound reports it
	// was already used — a concurrent double-redeem must not re-succeed.
	MarkCodeUsed(ctx context.Context, id string, at time.Time) error

	// DeleteExpiredCodes is housekeeping.
	DeleteExpiredCodes(ctx context.Context, now time.Time) error
}

type RateLimits interface {
	// CheckAndIncrement reads the (identifier, action) counter, applies
	// the block/window rules, and increments — all in one atomic store
	// operation so parallel bursts cannot slip past the limit.
	CheckAndIncrement(ctx context.Context, identifier, action string, limit int, window time.Duration, now time.Time) (domain.RateLimitDecision, error)

	// DeleteStaleRateLimits drops counters idle past their window.
	DeleteStaleRateLimits(ctx context.Context, olderThan time.Time) error
}

type AuditLogs interface {
	// AppendAuditEvent writes one event. The log is append-only; nothing
	// in this subsystem mutates or deletes it.
	AppendAuditEvent(ctx context.Context, ev domain.AuditEvent) error

	// ListAuditEventsBySessionID returns a session's events, oldest first.
	ListAuditEventsBySessionID(ctx context.Context, sessionID string) ([]domain.AuditEvent, error)
}
