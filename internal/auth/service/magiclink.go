package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/loandocs/loandocs/internal/auth/domain"
	"github.com/loandocs/loandocs/internal/auth/identity"
	"github.com/loandocs/loandocs/internal/auth/mailer"
	"github.com/loandocs/loandocs/internal/auth/store"
	"github.com/loandocs/loandocs/pkg/cryptox"
	"github.com/loandocs/loandocs/pkg/idx"
)

var (
	ErrInvalidTTL        = errors.New("ttl hours out of range")
	ErrLinkNotFound      = errors.New("magic link not found")
	ErrLinkNotSendable   = errors.New("magic link is used, revoked or expired")
	ErrLinkNotExtendable = errors.New("magic link cannot be extended")
)

// IssueLinkParams describes a magic-link request.
type IssueLinkParams struct {
	Email     string
	LoanIDs   []string
	TTLHours  int // zero picks the default
	IPAddress string
	UserAgent string
}

// IssuedLink is the result of issuing a link: the link record plus the
// session opened alongside it. The URL is emailed, never returned to API
// callers.
type IssuedLink struct {
	Link    domain.MagicLink
	Session domain.AuthSession
}

// MagicLinkService owns the lifecycle of one-time sign-in links: issue,
// resend, revoke and extend. Every link is paired with a pending session;
// revocation and extension keep the two in lockstep.
type MagicLinkService struct {
	Store      store.Store
	Identity   identity.Provider
	Mailer     mailer.Mailer
	RateLimits *RateLimitService
	Audit      *AuditService
	Logger     *slog.Logger
}

// Issue mints a sign-in link for the address and opens the pending session
// it will complete. Unknown addresses get a temporary borrower account.
func (s *MagicLinkService) Issue(ctx context.Context, p IssueLinkParams) (IssuedLink, error) {
	email := domain.NormalizeEmail(p.Email)

	ttlHours := p.TTLHours
	if ttlHours == 0 {
		ttlHours = domain.MagicLinkDefaultTTLHours
	}
	if ttlHours < domain.MagicLinkMinTTLHours || ttlHours > domain.MagicLinkMaxTTLHours {
		return IssuedLink{}, ErrInvalidTTL
	}
	ttl := time.Duration(ttlHours) * time.Hour

	if err := s.RateLimits.AllowMagicLinkRequest(ctx, email); err != nil {
		return IssuedLink{}, err
	}

	user, err := s.resolveUser(ctx, email)
	if err != nil {
		return IssuedLink{}, err
	}

	link, err := s.Identity.CreateSignInLink(ctx, email, ttl)
	if err != nil {
		return IssuedLink{}, fmt.Errorf("failed to create sign-in link: %w", err)
	}

	externalID := link.ExternalIdentityID
	if externalID == "" {
		externalID = user.ExternalIdentityID
	}

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	sess := domain.AuthSession{
		ID:                 idx.New().String(),
		SessionID:          uuid.NewString(),
		UserID:             user.ID,
		EmailHash:          cryptox.Hash(email),
		ExternalIdentityID: externalID,
		LoanIDs:            p.LoanIDs,
		Status:             domain.SessionPending,
		ExpiresAt:          expiresAt,
		IPAddress:          p.IPAddress,
		UserAgent:          p.UserAgent,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	record := domain.MagicLink{
		ID:           idx.New().String(),
		UserID:       user.ID,
		SessionID:    sess.ID,
		MagicLinkURL: link.URL,
		ExpiresAt:    expiresAt,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().CreateSession(ctx, sess); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		if err := tx.MagicLinks().CreateMagicLink(ctx, record); err != nil {
			return fmt.Errorf("failed to create magic link: %w", err)
		}
		return nil
	})
	if err != nil {
		return IssuedLink{}, err
	}

	if err := s.deliver(ctx, record.ID, email, link.URL, ttlHours); err != nil {
		return IssuedLink{}, err
	}

	s.Audit.Record(domain.AuditEvent{
		SessionID: sess.ID,
		UserID:    user.ID,
		EventType: domain.AuditMagicLinkIssued,
		Success:   true,
		IPAddress: p.IPAddress,
		UserAgent: p.UserAgent,
	})

	record.SendCount = 1
	return IssuedLink{Link: record, Session: sess}, nil
}

func (s *MagicLinkService) resolveUser(ctx context.Context, email string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, fmt.Errorf("failed to look up user: %w", err)
	}

	now := time.Now().UTC()
	user = domain.User{
		ID:          idx.New().String(),
		Email:       email,
		Role:        domain.RoleBorrower,
		IsTemporary: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a create race; the other writer's row wins.
			return s.Store.Users().GetUserByEmail(ctx, email)
		}
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *MagicLinkService) deliver(ctx context.Context, linkID, email, url string, ttlHours int) error {
	if err := s.Mailer.SendMagicLink(ctx, email, url, ttlHours); err != nil {
		return fmt.Errorf("failed to email magic link: %w", err)
	}
	if err := s.Store.MagicLinks().RecordMagicLinkSend(ctx, linkID, time.Now().UTC()); err != nil {
		// The mail went out; a lost counter update is log-worthy only.
		s.Logger.Warn("failed to record magic link send", "link_id", linkID, "error", err)
	}
	return nil
}

// Resend re-delivers an existing live link without minting a new URL.
func (s *MagicLinkService) Resend(ctx context.Context, linkID string) error {
	link, user, err := s.loadLink(ctx, linkID)
	if err != nil {
		return err
	}
	if !link.Extendable() || time.Now().UTC().After(link.ExpiresAt) {
		return ErrLinkNotSendable
	}

	if err := s.RateLimits.AllowMagicLinkRequest(ctx, user.Email); err != nil {
		return err
	}

	if err := s.deliver(ctx, link.ID, user.Email, link.MagicLinkURL, int(time.Until(link.ExpiresAt).Hours())+1); err != nil {
		return err
	}

	s.Audit.Record(domain.AuditEvent{
		SessionID: link.SessionID,
		UserID:    user.ID,
		EventType: domain.AuditMagicLinkResent,
		Success:   true,
	})
	return nil
}

// Revoke deactivates a link and revokes its session in the same
// transaction. Idempotent on an already-revoked link.
func (s *MagicLinkService) Revoke(ctx context.Context, linkID, revokedBy, reason string) error {
	link, _, err := s.loadLink(ctx, linkID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MagicLinks().RevokeMagicLink(ctx, link.ID, revokedBy, reason, now); err != nil {
			return fmt.Errorf("failed to revoke magic link: %w", err)
		}
		if err := tx.Sessions().RevokeSession(ctx, link.SessionID, now); err != nil {
			return fmt.Errorf("failed to revoke session: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.Audit.Record(domain.AuditEvent{
		SessionID:    link.SessionID,
		UserID:       link.UserID,
		EventType:    domain.AuditMagicLinkRevoked,
		Success:      true,
		ErrorMessage: reason,
	})
	return nil
}

// Extend moves a live link's expiry to now+ttlHours and keeps the paired
// session's TTL in lockstep so the link never outlives the session.
func (s *MagicLinkService) Extend(ctx context.Context, linkID string, ttlHours int) (IssuedLink, error) {
	if ttlHours < domain.MagicLinkMinTTLHours || ttlHours > domain.MagicLinkMaxTTLHours {
		return IssuedLink{}, ErrInvalidTTL
	}

	link, _, err := s.loadLink(ctx, linkID)
	if err != nil {
		return IssuedLink{}, err
	}
	if !link.Extendable() {
		return IssuedLink{}, ErrLinkNotExtendable
	}

	now := time.Now().UTC()
	expiresAt := now.Add(time.Duration(ttlHours) * time.Hour)

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MagicLinks().ExtendMagicLink(ctx, link.ID, expiresAt); err != nil {
			return fmt.Errorf("failed to extend magic link: %w", err)
		}
		if err := tx.Sessions().UpdateSessionExpiry(ctx, link.SessionID, expiresAt); err != nil {
			return fmt.Errorf("failed to extend session: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return IssuedLink{}, ErrLinkNotExtendable
		}
		return IssuedLink{}, err
	}

	link.ExpiresAt = expiresAt

	sess, err := s.Store.Sessions().GetSessionByID(ctx, link.SessionID)
	if err != nil {
		return IssuedLink{}, fmt.Errorf("failed to load session: %w", err)
	}

	s.Audit.Record(domain.AuditEvent{
		SessionID: link.SessionID,
		UserID:    link.UserID,
		EventType: domain.AuditMagicLinkExtended,
		Success:   true,
	})
	return IssuedLink{Link: link, Session: sess}, nil
}

func (s *MagicLinkService) loadLink(ctx context.Context, linkID string) (domain.MagicLink, domain.User, error) {
	link, err := s.Store.MagicLinks().GetMagicLinkByID(ctx, linkID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.MagicLink{}, domain.User{}, ErrLinkNotFound
		}
		return domain.MagicLink{}, domain.User{}, fmt.Errorf("failed to load magic link: %w", err)
	}

	user, err := s.Store.Users().GetUserByID(ctx, link.UserID)
	if err != nil {
		return domain.MagicLink{}, domain.User{}, fmt.Errorf("failed to load user: %w", err)
	}
	return link, user, nil
}
