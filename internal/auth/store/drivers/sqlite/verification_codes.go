package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/loandocs/loandocs/internal/auth/domain"
	"github.com/loandocs/loandocs/internal/auth/store"
)

type verificationCodesRepo struct {
	q dbtx
}

const verificationCodeColumns = `id, session_id, code_hash, expires_at, attempt_count,
	max_attempts, is_used, used_at, created_at`

func scanVerificationCode(row interface{ Scan(dest ...any) error }) (domain.VerificationCode, error) {
	var (
		c    domain.VerificationCode
		used sql.NullTime
	)
	err := row.Scan(
		&c.ID,
		&c.SessionID,
		&c.CodeHash,
		&c.ExpiresAt,
		&c.AttemptCount,
		&c.MaxAttempts,
		&c.IsUsed,
		&used,
		&c.CreatedAt,
	)
	if err != nil {
		return domain.VerificationCode{}, err
	}
	c.UsedAt = mapNullTimePtr(used)
	return c, nil
}

func (r *verificationCodesRepo) CreateVerificationCode(ctx context.Context, c domain.VerificationCode) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = domain.MaxCodeAttempts
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO verification_codes (id, session_id, code_hash, expires_at, attempt_count,
			max_attempts, is_used, used_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.SessionID,
		c.CodeHash,
		c.ExpiresAt,
		c.AttemptCount,
		c.MaxAttempts,
		c.IsUsed,
		mapOptionalTime(c.UsedAt),
		c.CreatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *verificationCodesRepo) GetLatestCodeBySessionID(ctx context.Context, sessionID string) (domain.VerificationCode, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+verificationCodeColumns+` FROM verification_codes
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		sessionID)
	c, err := scanVerificationCode(row)
	if err != nil {
		return domain.VerificationCode{}, mapNotFound(err)
	}
	return c, nil
}

// DeleteUnusedCodesBySessionID keeps consumed codes around so a replay of
// a spent code can still be told apart from a code that never existed.
func (r *verificationCodesRepo) DeleteUnusedCodesBySessionID(ctx context.Context, sessionID string) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM verification_codes WHERE session_id = ? AND is_used = 0`,
		sessionID)
	return err
}

// IncrementCodeAttempts bumps the counter in a single conditional UPDATE.
// Two goroutines racing on the last attempt serialize on the row write, so
// exactly one of them observes the ceiling.
func (r *verificationCodesRepo) IncrementCodeAttempts(ctx context.Context, id string) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `
		UPDATE verification_codes
		SET attempt_count = attempt_count + 1
		WHERE id = ? AND is_used = 0 AND attempt_count < max_attempts
		RETURNING attempt_count`,
		id).Scan(&count)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return count, nil
}

// MarkCodeUsed consumes the code at most once. A concurrent double-redeem
// loses the conditional write and gets ErrNotFound.
func (r *verificationCodesRepo) MarkCodeUsed(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE verification_codes
		SET is_used = 1, used_at = ?
		WHERE id = ? AND is_used = 0`,
		at, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *verificationCodesRepo) DeleteExpiredCodes(ctx context.Context, now time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM verification_codes WHERE expires_at < ?`, now)
	return err
}
