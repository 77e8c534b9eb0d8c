package http

import (
	"net/http"
	"time"

	"github.com/loandocs/loandocs/internal/auth/domain"
	"github.com/loandocs/loandocs/internal/auth/service"
	"github.com/loandocs/loandocs/pkg/httpx"
	"github.com/loandocs/loandocs/pkg/slogx"
)

// SessionsHandler serves admin session inspection and revocation.
type SessionsHandler struct {
	SessionService *service.SessionService
	AuditService   *service.AuditService
}

type sessionResponse struct {
	SessionID      string     `json:"sessionId"`
	Status         string     `json:"status"`
	LoanIDs        []string   `json:"loanIds,omitempty"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	VerifiedAt     *time.Time `json:"verifiedAt,omitempty"`
	LastAccessedAt *time.Time `json:"lastAccessedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// HandleGet handles GET /v1/auth/sessions/{id}.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	sess, err := h.SessionService.Get(ctx, r.PathValue("id"))
	if err != nil {
		log.Warn("session lookup failed", "session_id", r.PathValue("id"), "err", err)
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		SessionID:      sess.SessionID,
		Status:         string(sess.Status),
		LoanIDs:        sess.LoanIDs,
		ExpiresAt:      sess.ExpiresAt,
		VerifiedAt:     sess.VerifiedAt,
		LastAccessedAt: sess.LastAccessedAt,
		CreatedAt:      sess.CreatedAt,
	})
}

// HandleRevoke handles POST /v1/auth/sessions/{id}/revoke.
func (h *SessionsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	revokedBy, _ := ctx.Value(httpx.CtxKeyUserID).(string)
	if err := h.SessionService.Revoke(ctx, r.PathValue("id"), revokedBy); err != nil {
		log.Warn("session revoke failed", "session_id", r.PathValue("id"), "err", err)
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type auditEventResponse struct {
	EventType    string    `json:"eventType"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	IPAddress    string    `json:"ipAddress,omitempty"`
	UserAgent    string    `json:"userAgent,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HandleAudit handles GET /v1/auth/sessions/{id}/audit, returning the
// session's audit trail oldest first.
func (h *SessionsHandler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	sess, err := h.SessionService.Get(ctx, r.PathValue("id"))
	if err != nil {
		log.Warn("session lookup failed", "session_id", r.PathValue("id"), "err", err)
		writeServiceError(w, err)
		return
	}

	events, err := h.AuditService.List(ctx, sess.ID)
	if err != nil {
		log.Error("failed to list audit events", "session_id", sess.ID, "err", err)
		writeServiceError(w, err)
		return
	}

	out := make([]auditEventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, toAuditResponse(ev))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func toAuditResponse(ev domain.AuditEvent) auditEventResponse {
	return auditEventResponse{
		EventType:    ev.EventType,
		Success:      ev.Success,
		ErrorMessage: ev.ErrorMessage,
		IPAddress:    ev.IPAddress,
		UserAgent:    ev.UserAgent,
		CreatedAt:    ev.CreatedAt,
	}
}
