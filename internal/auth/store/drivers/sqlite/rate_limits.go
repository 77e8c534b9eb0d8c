package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/loandocs/loandocs/internal/auth/domain"
)

type rateLimitsRepo struct {
	q dbtx
}

// CheckAndIncrement folds the whole read/reset/increment/block decision
// into one upsert so concurrent requests against the same key serialize on
// the row write and none slip past the limit.
//
// Rules, in priority order:
//  1. an active block leaves the row untouched,
//  2. an elapsed window resets the counter to 1,
//  3. otherwise the counter increments, and crossing the limit stamps
//     blocked_until at the end of the current window.
func (r *rateLimitsRepo) CheckAndIncrement(ctx context.Context, identifier, action string, limit int, window time.Duration, now time.Time) (domain.RateLimitDecision, error) {
	nowUnix := now.Unix()
	windowSec := int64(window / time.Second)

	var (
		count        int
		windowStart  int64
		blockedUntil sql.NullInt64
	)
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO rate_limits (identifier, action, attempt_count, window_started_at, blocked_until, updated_at)
		VALUES (?1, ?2, 1, ?3, NULL, ?3)
		ON CONFLICT (identifier, action) DO UPDATE SET
			attempt_count = CASE
				WHEN rate_limits.blocked_until IS NOT NULL AND rate_limits.blocked_until > ?3 THEN rate_limits.attempt_count
				WHEN ?3 - rate_limits.window_started_at >= ?4 THEN 1
				ELSE rate_limits.attempt_count + 1
			END,
			window_started_at = CASE
				WHEN rate_limits.blocked_until IS NOT NULL AND rate_limits.blocked_until > ?3 THEN rate_limits.window_started_at
				WHEN ?3 - rate_limits.window_started_at >= ?4 THEN ?3
				ELSE rate_limits.window_started_at
			END,
			blocked_until = CASE
				WHEN rate_limits.blocked_until IS NOT NULL AND rate_limits.blocked_until > ?3 THEN rate_limits.blocked_until
				WHEN ?3 - rate_limits.window_started_at >= ?4 THEN NULL
				-- the block ends where the window would have, not a
				-- full window after the attempt that crossed the limit
				WHEN rate_limits.attempt_count + 1 > ?5 THEN rate_limits.window_started_at + ?4
				ELSE NULL
			END,
			updated_at = ?3
		RETURNING attempt_count, window_started_at, blocked_until`,
		identifier, action, nowUnix, windowSec, limit,
	).Scan(&count, &windowStart, &blockedUntil)
	if err != nil {
		return domain.RateLimitDecision{}, err
	}

	if blockedUntil.Valid && blockedUntil.Int64 > nowUnix {
		return domain.RateLimitDecision{
			Allowed:    false,
			RetryAfter: time.Duration(blockedUntil.Int64-nowUnix) * time.Second,
		}, nil
	}
	if count > limit {
		// Block just set at the window boundary but already in the past
		// (clock skew or a sub-second window); report a minimal backoff.
		return domain.RateLimitDecision{Allowed: false, RetryAfter: time.Second}, nil
	}
	return domain.RateLimitDecision{Allowed: true}, nil
}

func (r *rateLimitsRepo) DeleteStaleRateLimits(ctx context.Context, olderThan time.Time) error {
	cutoff := olderThan.Unix()
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM rate_limits
		WHERE updated_at < ? AND (blocked_until IS NULL OR blocked_until < ?)`,
		cutoff, cutoff)
	return err
}
