package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/loandocs/loandocs/internal/auth/service"
	"github.com/loandocs/loandocs/pkg/httpx"
	"github.com/loandocs/loandocs/pkg/slogx"
)

// TokenHandler serves validation and refresh for session bearer tokens.
type TokenHandler struct {
	TokenService *service.TokenService
}

type tokenRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Valid     bool      `json:"valid"`
	SessionID string    `json:"sessionId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	LoanIDs   []string  `json:"loanIds,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

// HandleValidate handles POST /v1/auth/validate. Invalid tokens get
// {valid:false} with 200 so resource services can use it as a cheap check
// without special-casing status codes.
func (h *TokenHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "token is required")
		return
	}

	claims, err := h.TokenService.Authenticate(ctx, req.Token)
	if err != nil {
		log.Warn("token validation failed", "err", err)
		httpx.NoCache(w)
		httpx.WriteJSON(w, http.StatusOK, validateResponse{Valid: false})
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, validateResponse{
		Valid:     true,
		SessionID: claims.SID,
		UserID:    claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		LoanIDs:   claims.LoanIDs,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

type refreshResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HandleRefresh handles POST /v1/auth/refresh.
func (h *TokenHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "token is required")
		return
	}

	fresh, claims, err := h.TokenService.Refresh(ctx, req.Token)
	if err != nil {
		log.Warn("token refresh failed", "err", err)
		writeServiceError(w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, refreshResponse{
		Token:     fresh,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}
