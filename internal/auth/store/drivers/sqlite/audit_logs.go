package sqlite

import (
	"context"
	"time"

	"github.com/loandocs/loandocs/internal/auth/domain"
)

type auditLogsRepo struct {
	q dbtx
}

func (r *auditLogsRepo) AppendAuditEvent(ctx context.Context, ev domain.AuditEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO auth_audit_logs (id, session_id, user_id, event_type, success,
			error_message, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.SessionID,
		ev.UserID,
		ev.EventType,
		ev.Success,
		ev.ErrorMessage,
		ev.IPAddress,
		ev.UserAgent,
		ev.CreatedAt,
	)
	return err
}

func (r *auditLogsRepo) ListAuditEventsBySessionID(ctx context.Context, sessionID string) ([]domain.AuditEvent, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, session_id, user_id, event_type, success, error_message, ip_address, user_agent, created_at
		FROM auth_audit_logs
		WHERE session_id = ?
		ORDER BY created_at ASC, id ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var ev domain.AuditEvent
		if err := rows.Scan(
			&ev.ID,
			&ev.SessionID,
			&ev.UserID,
			&ev.EventType,
			&ev.Success,
			&ev.ErrorMessage,
			&ev.IPAddress,
			&ev.UserAgent,
			&ev.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
