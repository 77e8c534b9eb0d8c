package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/loandocs/loandocs/internal/auth/identity"
	"github.com/loandocs/loandocs/internal/auth/service"
	"github.com/loandocs/loandocs/pkg/httpx"
)

// writeServiceError maps service failures onto the wire. Rejection detail
// stays in the audit log; responses to auth failures are deliberately
// generic.
func writeServiceError(w http.ResponseWriter, err error) {
	var limited *service.RateLimitedError
	if errors.As(err, &limited) {
		w.Header().Set("Retry-After", strconv.Itoa(int(limited.RetryAfter.Seconds())))
		httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited",
			"too many attempts, try again later")
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidTTL):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"ttlHours must be between 1 and 168")
	case errors.Is(err, service.ErrLinkNotFound),
		errors.Is(err, service.ErrSessionNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, service.ErrLinkNotSendable),
		errors.Is(err, service.ErrLinkNotExtendable):
		httpx.WriteError(w, http.StatusConflict, "link_unavailable",
			"the magic link is no longer usable")
	case errors.Is(err, service.ErrSessionNotPending):
		httpx.WriteError(w, http.StatusConflict, "session_unavailable",
			"the session cannot be completed")
	case errors.Is(err, service.ErrCodeRejected):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_code",
			"the verification code is invalid")
	case errors.Is(err, service.ErrUnauthenticated):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token",
			"the session token is invalid or expired")
	case errors.Is(err, identity.ErrAssertionExpired),
		errors.Is(err, identity.ErrAssertionInvalid):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_grant",
			"the sign-in link is invalid or expired")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "server_error",
			"internal server error")
	}
}
