package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loandocs/loandocs/internal/auth/domain"
	"github.com/loandocs/loandocs/internal/auth/store"
)

// Per-action abuse ceilings. Identifiers differ per action: magic-link
// requests key on the normalized email, code actions key on the session.
const (
	MagicLinkRequestLimit  = 5
	MagicLinkRequestWindow = time.Hour

	CodeSendLimit  = 3
	CodeSendWindow = 10 * time.Minute

	CodeVerifyLimit  = 10
	CodeVerifyWindow = 10 * time.Minute
)

// ErrRateLimited is wrapped by every RateLimitedError so callers can match
// with errors.Is without caring about the action.
var ErrRateLimited = errors.New("rate limited")

// RateLimitedError reports a denied attempt and when retrying is allowed.
type RateLimitedError struct {
	Action     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: retry after %s", e.Action, e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// RateLimitService enforces the persistent per-key attempt counters. The
// check and the increment are one atomic store operation, so parallel
// bursts against the same key cannot slip past the limit.
type RateLimitService struct {
	Store store.Store
	Audit *AuditService
}

func (s *RateLimitService) allow(ctx context.Context, identifier, action string, limit int, window time.Duration) error {
	decision, err := s.Store.RateLimits().CheckAndIncrement(ctx, identifier, action, limit, window, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to check rate limit: %w", err)
	}
	if decision.Allowed {
		return nil
	}

	s.Audit.Record(domain.AuditEvent{
		EventType:    domain.AuditRateLimited,
		Success:      false,
		ErrorMessage: fmt.Sprintf("action %s blocked for %s", action, decision.RetryAfter),
	})
	return &RateLimitedError{Action: action, RetryAfter: decision.RetryAfter}
}

// AllowMagicLinkRequest gates link issuance per normalized email.
func (s *RateLimitService) AllowMagicLinkRequest(ctx context.Context, email string) error {
	return s.allow(ctx, domain.NormalizeEmail(email), domain.ActionMagicLinkRequest, MagicLinkRequestLimit, MagicLinkRequestWindow)
}

// AllowCodeSend gates verification-code issuance per session.
func (s *RateLimitService) AllowCodeSend(ctx context.Context, sessionID string) error {
	return s.allow(ctx, sessionID, domain.ActionCodeSend, CodeSendLimit, CodeSendWindow)
}

// AllowCodeVerify gates verification attempts per session.
func (s *RateLimitService) AllowCodeVerify(ctx context.Context, sessionID string) error {
	return s.allow(ctx, sessionID, domain.ActionCodeVerify, CodeVerifyLimit, CodeVerifyWindow)
}
