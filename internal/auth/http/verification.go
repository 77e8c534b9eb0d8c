package http

import (
	"encoding/json"
	"net/http"

	"github.com/loandocs/loandocs/internal/auth/service"
	"github.com/loandocs/loandocs/pkg/httpx"
	"github.com/loandocs/loandocs/pkg/slogx"
)

// VerificationHandler serves the emailed-code endpoints.
type VerificationHandler struct {
	SessionService *service.SessionService
}

type codeRequestRequest struct {
	SessionID string `json:"sessionId"`
}

// HandleRequest handles POST /v1/auth/code/request.
func (h *VerificationHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req codeRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "sessionId is required")
		return
	}

	if err := h.SessionService.RequestCode(ctx, req.SessionID); err != nil {
		log.Warn("code request failed", "session_id", req.SessionID, "err", err)
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type codeVerifyRequest struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"code"`
}

type codeVerifyResponse struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

// HandleVerify handles POST /v1/auth/code/verify. A correct code completes
// the session and returns its bearer token; every rejection is the same
// generic 401.
func (h *VerificationHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req codeVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "sessionId and code are required")
		return
	}

	token, _, err := h.SessionService.CompleteWithCode(ctx, req.SessionID, req.Code)
	if err != nil {
		log.Warn("code verification failed", "session_id", req.SessionID, "err", err)
		writeServiceError(w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, codeVerifyResponse{
		SessionID: req.SessionID,
		Token:     token,
	})
}
