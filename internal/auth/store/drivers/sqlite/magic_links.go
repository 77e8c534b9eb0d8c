package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/loandocs/loandocs/internal/auth/domain"
	"github.com/loandocs/loandocs/internal/auth/store"
)

type magicLinksRepo struct {
	q dbtx
}

const magicLinkColumns = `id, user_id, session_id, magic_link_url, expires_at, send_count,
	last_sent_at, used_at, revoked_at, revoked_by, revoke_reason, is_active, created_at, updated_at`

func scanMagicLink(row interface{ Scan(dest ...any) error }) (domain.MagicLink, error) {
	var (
		m        domain.MagicLink
		lastSent sql.NullTime
		used     sql.NullTime
		revoked  sql.NullTime
	)
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.SessionID,
		&m.MagicLinkURL,
		&m.ExpiresAt,
		&m.SendCount,
		&lastSent,
		&used,
		&revoked,
		&m.RevokedBy,
		&m.RevokeReason,
		&m.IsActive,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return domain.MagicLink{}, err
	}
	m.LastSentAt = mapNullTimePtr(lastSent)
	m.UsedAt = mapNullTimePtr(used)
	m.RevokedAt = mapNullTimePtr(revoked)
	return m, nil
}

func (r *magicLinksRepo) CreateMagicLink(ctx context.Context, m domain.MagicLink) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO magic_links (id, user_id, session_id, magic_link_url, expires_at, send_count,
			last_sent_at, used_at, revoked_at, revoked_by, revoke_reason, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.UserID,
		m.SessionID,
		m.MagicLinkURL,
		m.ExpiresAt,
		m.SendCount,
		mapOptionalTime(m.LastSentAt),
		mapOptionalTime(m.UsedAt),
		mapOptionalTime(m.RevokedAt),
		m.RevokedBy,
		m.RevokeReason,
		m.IsActive,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *magicLinksRepo) GetMagicLinkByID(ctx context.Context, id string) (domain.MagicLink, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+magicLinkColumns+` FROM magic_links WHERE id = ?`, id)
	m, err := scanMagicLink(row)
	if err != nil {
		return domain.MagicLink{}, mapNotFound(err)
	}
	return m, nil
}

func (r *magicLinksRepo) GetActiveMagicLinkBySessionID(ctx context.Context, sessionID string) (domain.MagicLink, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+magicLinkColumns+` FROM magic_links
		WHERE session_id = ? AND is_active = 1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		sessionID)
	m, err := scanMagicLink(row)
	if err != nil {
		return domain.MagicLink{}, mapNotFound(err)
	}
	return m, nil
}

// RecordMagicLinkSend is conditional on the link still being live so a
// revoke racing a resend cannot bump a dead link.
func (r *magicLinksRepo) RecordMagicLinkSend(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE magic_links
		SET send_count = send_count + 1, last_sent_at = ?, updated_at = ?
		WHERE id = ? AND is_active = 1 AND used_at IS NULL`,
		at, at, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *magicLinksRepo) MarkMagicLinkUsed(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE magic_links
		SET used_at = ?, is_active = 0, updated_at = ?
		WHERE id = ? AND is_active = 1 AND used_at IS NULL`,
		at, at, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RevokeMagicLink is idempotent on an already-revoked link.
func (r *magicLinksRepo) RevokeMagicLink(ctx context.Context, id, revokedBy, reason string, at time.Time) error {
	var exists int
	if err := r.q.QueryRowContext(ctx,
		`SELECT 1 FROM magic_links WHERE id = ?`, id).Scan(&exists); err != nil {
		return mapNotFound(err)
	}

	_, err := r.q.ExecContext(ctx, `
		UPDATE magic_links
		SET revoked_at = ?, revoked_by = ?, revoke_reason = ?, is_active = 0, updated_at = ?
		WHERE id = ? AND revoked_at IS NULL`,
		at, revokedBy, reason, at, id)
	return err
}

func (r *magicLinksRepo) ExtendMagicLink(ctx context.Context, id string, expiresAt time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE magic_links
		SET expires_at = ?, updated_at = ?
		WHERE id = ? AND is_active = 1 AND used_at IS NULL`,
		expiresAt, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
