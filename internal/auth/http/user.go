package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/loandocs/loandocs/internal/auth/service"
	"github.com/loandocs/loandocs/pkg/httpx"
	"github.com/loandocs/loandocs/pkg/slogx"
)

// UserHandler serves account endpoints for authenticated borrowers.
type UserHandler struct {
	UserService *service.UserService
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

// HandleSetPassword handles POST /v1/auth/password, upgrading a link-only
// account with a password.
func (h *UserHandler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing authentication")
		return
	}

	var req setPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "password is required")
		return
	}

	if err := h.UserService.SetPassword(ctx, userID, req.Password); err != nil {
		if errors.Is(err, service.ErrWeakPassword) {
			httpx.WriteError(w, http.StatusBadRequest, "weak_password", "password does not meet requirements")
			return
		}
		log.Error("failed to set password", "user_id", userID, "err", err)
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
