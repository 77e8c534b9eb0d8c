package http

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/loandocs/loandocs/internal/auth/service"
	"github.com/loandocs/loandocs/pkg/httpx"
	"github.com/loandocs/loandocs/pkg/slogx"
)

// ExchangeHandler redeems identity assertions for sessions.
type ExchangeHandler struct {
	SessionService *service.SessionService
}

type exchangeRequest struct {
	Assertion string `json:"assertion"`
}

type exchangeResponse struct {
	SessionID            string `json:"sessionId"`
	Token                string `json:"token,omitempty"`
	VerificationRequired bool   `json:"verificationRequired"`
}

// ServeHTTP handles POST /v1/auth/exchange.
func (h *ExchangeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Assertion == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "assertion is required")
		return
	}

	result, err := h.SessionService.Exchange(ctx, req.Assertion)
	if err != nil {
		log.Warn("assertion exchange failed", "err", err)
		writeServiceError(w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, exchangeResponse{
		SessionID:            result.SessionID,
		Token:                result.Token,
		VerificationRequired: result.VerificationRequired,
	})
}

// clientIP extracts the originating client address, preferring proxy
// headers over the socket peer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
