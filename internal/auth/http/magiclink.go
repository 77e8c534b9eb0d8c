package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/loandocs/loandocs/internal/auth/service"
	"github.com/loandocs/loandocs/pkg/httpx"
	"github.com/loandocs/loandocs/pkg/slogx"
)

// MagicLinkHandler serves the link lifecycle endpoints.
type MagicLinkHandler struct {
	MagicLinkService *service.MagicLinkService
}

type requestMagicLinkRequest struct {
	Email    string   `json:"email"`
	LoanIDs  []string `json:"loanIds,omitempty"`
	TTLHours int      `json:"ttlHours,omitempty"`
}

type magicLinkResponse struct {
	LinkID    string    `json:"linkId"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
	SendCount int       `json:"sendCount"`
}

// HandleRequest handles POST /v1/auth/magic-link. The minted URL is only
// ever emailed; the response carries identifiers and expiry, never the URL.
func (h *MagicLinkHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req requestMagicLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	issued, err := h.MagicLinkService.Issue(ctx, service.IssueLinkParams{
		Email:     req.Email,
		LoanIDs:   req.LoanIDs,
		TTLHours:  req.TTLHours,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		log.Warn("magic link issue failed", "err", err)
		writeServiceError(w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, magicLinkResponse{
		LinkID:    issued.Link.ID,
		SessionID: issued.Session.SessionID,
		ExpiresAt: issued.Link.ExpiresAt,
		SendCount: issued.Link.SendCount,
	})
}

// HandleResend handles POST /v1/auth/magic-links/{id}/resend.
func (h *MagicLinkHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := h.MagicLinkService.Resend(ctx, r.PathValue("id")); err != nil {
		log.Warn("magic link resend failed", "link_id", r.PathValue("id"), "err", err)
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type revokeMagicLinkRequest struct {
	Reason string `json:"reason,omitempty"`
}

// HandleRevoke handles POST /v1/auth/magic-links/{id}/revoke.
func (h *MagicLinkHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req revokeMagicLinkRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	revokedBy, _ := ctx.Value(httpx.CtxKeyUserID).(string)
	if err := h.MagicLinkService.Revoke(ctx, r.PathValue("id"), revokedBy, req.Reason); err != nil {
		log.Warn("magic link revoke failed", "link_id", r.PathValue("id"), "err", err)
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type extendMagicLinkRequest struct {
	TTLHours int `json:"ttlHours"`
}

// HandleExtend handles POST /v1/auth/magic-links/{id}/extend.
func (h *MagicLinkHandler) HandleExtend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req extendMagicLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	extended, err := h.MagicLinkService.Extend(ctx, r.PathValue("id"), req.TTLHours)
	if err != nil {
		log.Warn("magic link extend failed", "link_id", r.PathValue("id"), "err", err)
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, magicLinkResponse{
		LinkID:    extended.Link.ID,
		SessionID: extended.Session.SessionID,
		ExpiresAt: extended.Link.ExpiresAt,
		SendCount: extended.Link.SendCount,
	})
}
