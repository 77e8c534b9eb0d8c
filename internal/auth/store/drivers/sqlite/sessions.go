package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/loandocs/loandocs/internal/auth/domain"
	"github.com/loandocs/loandocs/internal/auth/store"
)

type sessionsRepo struct {
	q dbtx
}

const sessionColumns = `id, session_id, user_id, email_hash, external_identity_id, loan_ids, status,
	token_hash, expires_at, verified_at, last_accessed_at, ip_address, user_agent, created_at, updated_at`

func scanSession(row interface{ Scan(dest ...any) error }) (domain.AuthSession, error) {
	var (
		s        domain.AuthSession
		loanIDs  string
		status   string
		verified sql.NullTime
		accessed sql.NullTime
	)
	err := row.Scan(
		&s.ID,
		&s.SessionID,
		&s.UserID,
		&s.EmailHash,
		&s.ExternalIdentityID,
		&loanIDs,
		&status,
		&s.TokenHash,
		&s.ExpiresAt,
		&verified,
		&accessed,
		&s.IPAddress,
		&s.UserAgent,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return domain.AuthSession{}, err
	}
	s.LoanIDs = splitIDs(loanIDs)
	s.Status = domain.SessionStatus(status)
	s.VerifiedAt = mapNullTimePtr(verified)
	s.LastAccessedAt = mapNullTimePtr(accessed)
	return s, nil
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.AuthSession) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
	if s.Status == "" {
		s.Status = domain.SessionPending
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO auth_sessions (id, session_id, user_id, email_hash, external_identity_id, loan_ids,
			status, token_hash, expires_at, verified_at, last_accessed_at, ip_address, user_agent,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.SessionID,
		s.UserID,
		s.EmailHash,
		s.ExternalIdentityID,
		joinIDs(s.LoanIDs),
		string(s.Status),
		s.TokenHash,
		s.ExpiresAt,
		mapOptionalTime(s.VerifiedAt),
		mapOptionalTime(s.LastAccessedAt),
		s.IPAddress,
		s.UserAgent,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.AuthSession, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM auth_sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err != nil {
		return domain.AuthSession{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) GetSessionBySessionID(ctx context.Context, sessionID string) (domain.AuthSession, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM auth_sessions WHERE session_id = ?`, sessionID)
	s, err := scanSession(row)
	if err != nil {
		return domain.AuthSession{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) GetLatestSessionByIdentity(ctx context.Context, externalIdentityID, emailHash string) (domain.AuthSession, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM auth_sessions
		WHERE external_identity_id = ? AND email_hash = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		externalIdentityID, emailHash)
	s, err := scanSession(row)
	if err != nil {
		return domain.AuthSession{}, mapNotFound(err)
	}
	return s, nil
}

// CompleteVerification is conditional on the stored status still being
// pending so a concurrent verify cannot double-complete.
func (r *sessionsRepo) CompleteVerification(ctx context.Context, id string, status domain.SessionStatus, verifiedAt time.Time, tokenHash string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE auth_sessions
		SET status = ?, verified_at = ?, token_hash = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		string(status), verifiedAt, tokenHash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *sessionsRepo) UpdateSessionExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE auth_sessions
		SET expires_at = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ('expired', 'revoked')`,
		expiresAt, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *sessionsRepo) TouchSession(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE auth_sessions SET last_accessed_at = ? WHERE id = ?`,
		at, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RevokeSession is idempotent: revoking an already-revoked session
// affects zero rows and is not an error.
func (r *sessionsRepo) RevokeSession(ctx context.Context, id string, at time.Time) error {
	// Probe first so a missing id still reports ErrNotFound.
	var exists int
	if err := r.q.QueryRowContext(ctx,
		`SELECT 1 FROM auth_sessions WHERE id = ?`, id).Scan(&exists); err != nil {
		return mapNotFound(err)
	}

	_, err := r.q.ExecContext(ctx, `
		UPDATE auth_sessions
		SET status = 'revoked', updated_at = ?
		WHERE id = ? AND status != 'revoked'`,
		at, id)
	return err
}

func (r *sessionsRepo) ExpireLapsedSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE auth_sessions
		SET status = 'expired', updated_at = ?
		WHERE status NOT IN ('expired', 'revoked') AND expires_at < ?`,
		now, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
