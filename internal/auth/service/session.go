package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loandocs/loandocs/internal/auth/domain"
	"github.com/loandocs/loandocs/internal/auth/identity"
	"github.com/loandocs/loandocs/internal/auth/store"
	"github.com/loandocs/loandocs/pkg/cryptox"
	"github.com/loandocs/loandocs/pkg/jwtx"
)

var (
	// ErrSessionNotPending is returned when an exchange or verification
	// targets a session that already completed, expired or was revoked.
	ErrSessionNotPending = errors.New("session is not pending")

	// ErrSessionNotFound is returned for an unknown public session id or
	// an assertion with no session behind it.
	ErrSessionNotFound = errors.New("session not found")
)

// ExchangeResult is the outcome of redeeming an identity assertion. When
// two-factor is on, Token is empty and VerificationRequired is set; the
// caller must come back with the emailed code.
type ExchangeResult struct {
	SessionID            string
	Token                string
	Claims               jwtx.Claims
	VerificationRequired bool
}

// SessionService drives the session state machine: assertion exchange,
// code completion, revocation. Status only ever moves forward; expiry is
// computed at read time so a lapsed session denies immediately.
type SessionService struct {
	Store        store.Store
	Identity     identity.Provider
	Tokens       *TokenService
	Verification *VerificationService
	Audit        *AuditService
	Logger       *slog.Logger

	// TwoFactorRequired forces the emailed-code step after every
	// assertion exchange.
	TwoFactorRequired bool
}

// Exchange redeems an identity assertion for either a session token or,
// with two-factor on, a pending session awaiting its code.
func (s *SessionService) Exchange(ctx context.Context, assertionToken string) (ExchangeResult, error) {
	assertion, err := s.Identity.VerifyAssertion(ctx, assertionToken)
	if err != nil {
		s.Audit.Record(domain.AuditEvent{
			EventType:    domain.AuditSessionExchanged,
			Success:      false,
			ErrorMessage: err.Error(),
		})
		return ExchangeResult{}, fmt.Errorf("failed to verify assertion: %w", err)
	}

	emailHash := cryptox.Hash(domain.NormalizeEmail(assertion.Email))
	sess, err := s.Store.Sessions().GetLatestSessionByIdentity(ctx, assertion.ExternalIdentityID, emailHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ExchangeResult{}, ErrSessionNotFound
		}
		return ExchangeResult{}, fmt.Errorf("failed to load session: %w", err)
	}

	now := time.Now().UTC()
	if sess.Status != domain.SessionPending || now.After(sess.ExpiresAt) {
		s.Audit.Record(domain.AuditEvent{
			SessionID:    sess.ID,
			UserID:       sess.UserID,
			EventType:    domain.AuditSessionExchanged,
			Success:      false,
			ErrorMessage: fmt.Sprintf("session %s", sess.EffectiveStatus(now)),
		})
		return ExchangeResult{}, ErrSessionNotPending
	}

	// The link is one-shot even when the code step still lies ahead.
	s.consumeMagicLink(ctx, sess.ID, now)

	if s.TwoFactorRequired {
		if err := s.Verification.Issue(ctx, sess); err != nil {
			return ExchangeResult{}, err
		}
		s.Audit.Record(domain.AuditEvent{
			SessionID: sess.ID,
			UserID:    sess.UserID,
			EventType: domain.AuditSessionExchanged,
			Success:   true,
		})
		return ExchangeResult{
			SessionID:            sess.SessionID,
			VerificationRequired: true,
		}, nil
	}

	token, claims, err := s.complete(ctx, sess, domain.SessionActive)
	if err != nil {
		return ExchangeResult{}, err
	}

	s.Audit.Record(domain.AuditEvent{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		EventType: domain.AuditSessionExchanged,
		Success:   true,
	})
	return ExchangeResult{SessionID: sess.SessionID, Token: token, Claims: claims}, nil
}

func (s *SessionService) consumeMagicLink(ctx context.Context, sessionRowID string, now time.Time) {
	link, err := s.Store.MagicLinks().GetActiveMagicLinkBySessionID(ctx, sessionRowID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.Logger.Warn("failed to load magic link for session", "session_id", sessionRowID, "error", err)
		}
		return
	}
	if err := s.Store.MagicLinks().MarkMagicLinkUsed(ctx, link.ID, now); err != nil &&
		!errors.Is(err, store.ErrNotFound) {
		s.Logger.Warn("failed to mark magic link used", "link_id", link.ID, "error", err)
	}
}

// CompleteWithCode finishes a pending two-factor session: the submitted
// code is checked and consumed, the session goes verified, and a token is
// minted.
func (s *SessionService) CompleteWithCode(ctx context.Context, publicSessionID, code string) (string, jwtx.Claims, error) {
	sess, err := s.getPending(ctx, publicSessionID)
	if err != nil {
		return "", jwtx.Claims{}, err
	}

	if err := s.Verification.Verify(ctx, sess, code); err != nil {
		return "", jwtx.Claims{}, err
	}

	return s.complete(ctx, sess, domain.SessionVerified)
}

// RequestCode re-issues the emailed code for a pending session.
func (s *SessionService) RequestCode(ctx context.Context, publicSessionID string) error {
	sess, err := s.getPending(ctx, publicSessionID)
	if err != nil {
		return err
	}
	return s.Verification.Issue(ctx, sess)
}

func (s *SessionService) getPending(ctx context.Context, publicSessionID string) (domain.AuthSession, error) {
	sess, err := s.Store.Sessions().GetSessionBySessionID(ctx, publicSessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.AuthSession{}, ErrSessionNotFound
		}
		return domain.AuthSession{}, fmt.Errorf("failed to load session: %w", err)
	}
	if sess.Status != domain.SessionPending || time.Now().UTC().After(sess.ExpiresAt) {
		return domain.AuthSession{}, ErrSessionNotPending
	}
	return sess, nil
}

// complete advances a pending session to the given live status and mints
// its token. The status write is conditional on the row still being
// pending, so a concurrent completion loses cleanly.
func (s *SessionService) complete(ctx context.Context, sess domain.AuthSession, status domain.SessionStatus) (string, jwtx.Claims, error) {
	user, err := s.Store.Users().GetUserByID(ctx, sess.UserID)
	if err != nil {
		return "", jwtx.Claims{}, fmt.Errorf("failed to load user: %w", err)
	}

	token, claims, err := s.Tokens.Mint(ctx, user, sess)
	if err != nil {
		return "", jwtx.Claims{}, err
	}

	now := time.Now().UTC()
	err = s.Store.Sessions().CompleteVerification(ctx, sess.ID, status, now, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", jwtx.Claims{}, ErrSessionNotPending
		}
		return "", jwtx.Claims{}, fmt.Errorf("failed to complete session: %w", err)
	}

	return token, claims, nil
}

// Revoke marks a session revoked by its public id. Idempotent.
func (s *SessionService) Revoke(ctx context.Context, publicSessionID, revokedBy string) error {
	sess, err := s.Store.Sessions().GetSessionBySessionID(ctx, publicSessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to load session: %w", err)
	}

	if err := s.Store.Sessions().RevokeSession(ctx, sess.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.Audit.Record(domain.AuditEvent{
		SessionID:    sess.ID,
		UserID:       sess.UserID,
		EventType:    domain.AuditSessionRevoked,
		Success:      true,
		ErrorMessage: fmt.Sprintf("revoked by %s", revokedBy),
	})
	return nil
}

// Get returns a session by public id with expiry folded into the status.
func (s *SessionService) Get(ctx context.Context, publicSessionID string) (domain.AuthSession, error) {
	sess, err := s.Store.Sessions().GetSessionBySessionID(ctx, publicSessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.AuthSession{}, ErrSessionNotFound
		}
		return domain.AuthSession{}, fmt.Errorf("failed to load session: %w", err)
	}
	sess.Status = sess.EffectiveStatus(time.Now().UTC())
	return sess, nil
}
