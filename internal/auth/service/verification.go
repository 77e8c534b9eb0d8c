package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loandocs/loandocs/internal/auth/domain"
	"github.com/loandocs/loandocs/internal/auth/mailer"
	"github.com/loandocs/loandocs/internal/auth/store"
	"github.com/loandocs/loandocs/pkg/cryptox"
	"github.com/loandocs/loandocs/pkg/idx"
)

// Verification failures. All wrap ErrCodeRejected; the specific cause is
// for the audit log, the API response stays generic.
var (
	ErrCodeRejected = errors.New("verification code rejected")

	ErrCodeNotFound          = fmt.Errorf("%w: no code issued", ErrCodeRejected)
	ErrCodeAlreadyUsed       = fmt.Errorf("%w: already used", ErrCodeRejected)
	ErrCodeExpired           = fmt.Errorf("%w: expired", ErrCodeRejected)
	ErrCodeAttemptsExhausted = fmt.Errorf("%w: attempts exhausted", ErrCodeRejected)
	ErrCodeMismatch          = fmt.Errorf("%w: mismatch", ErrCodeRejected)
)

// VerificationService issues and checks the emailed 6-digit codes that
// complete two-factor sessions. At most one live code exists per session;
// issuing a new one supersedes the old.
type VerificationService struct {
	Store      store.Store
	Mailer     mailer.Mailer
	RateLimits *RateLimitService
	Audit      *AuditService
	Logger     *slog.Logger
}

// Issue generates a fresh code for the session and emails it to the user.
// Any unused prior code is superseded; a consumed one is kept so a replay
// can still be told apart from a code that never existed.
func (s *VerificationService) Issue(ctx context.Context, sess domain.AuthSession) error {
	if err := s.RateLimits.AllowCodeSend(ctx, sess.ID); err != nil {
		return err
	}

	user, err := s.Store.Users().GetUserByID(ctx, sess.UserID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	code, err := cryptox.GenerateCode(domain.CodeLength)
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	now := time.Now().UTC()
	record := domain.VerificationCode{
		ID:          idx.New().String(),
		SessionID:   sess.ID,
		CodeHash:    cryptox.Hash(code),
		ExpiresAt:   now.Add(domain.CodeTTL),
		MaxAttempts: domain.MaxCodeAttempts,
		CreatedAt:   now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.VerificationCodes().DeleteUnusedCodesBySessionID(ctx, sess.ID); err != nil {
			return fmt.Errorf("failed to supersede previous codes: %w", err)
		}
		if err := tx.VerificationCodes().CreateVerificationCode(ctx, record); err != nil {
			return fmt.Errorf("failed to store code: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.Mailer.SendVerificationCode(ctx, user.Email, code, int(domain.CodeTTL/time.Minute)); err != nil {
		return fmt.Errorf("failed to email code: %w", err)
	}

	s.Audit.Record(domain.AuditEvent{
		SessionID: sess.ID,
		UserID:    user.ID,
		EventType: domain.AuditCodeIssued,
		Success:   true,
	})
	return nil
}

// Verify checks a submitted code against the session's latest code. The
// dead-code checks run before the comparison so an attacker cannot learn
// whether a spent or expired code would otherwise have matched, and every
// failed comparison burns an attempt.
func (s *VerificationService) Verify(ctx context.Context, sess domain.AuthSession, submitted string) error {
	if err := s.RateLimits.AllowCodeVerify(ctx, sess.ID); err != nil {
		return err
	}

	if err := s.verify(ctx, sess, submitted); err != nil {
		s.Audit.Record(domain.AuditEvent{
			SessionID:    sess.ID,
			UserID:       sess.UserID,
			EventType:    domain.AuditCodeRejected,
			Success:      false,
			ErrorMessage: err.Error(),
		})
		return err
	}

	s.Audit.Record(domain.AuditEvent{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		EventType: domain.AuditCodeVerified,
		Success:   true,
	})
	return nil
}

func (s *VerificationService) verify(ctx context.Context, sess domain.AuthSession, submitted string) error {
	code, err := s.Store.VerificationCodes().GetLatestCodeBySessionID(ctx, sess.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("failed to load code: %w", err)
	}

	now := time.Now().UTC()
	switch {
	case code.IsUsed:
		return ErrCodeAlreadyUsed
	case now.After(code.ExpiresAt):
		return ErrCodeExpired
	case code.Exhausted():
		return ErrCodeAttemptsExhausted
	}

	if !cryptox.TimingSafeEqual(cryptox.Hash(submitted), code.CodeHash) {
		count, err := s.Store.VerificationCodes().IncrementCodeAttempts(ctx, code.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Lost a race: the code was consumed or hit its ceiling
				// between the read and the increment.
				return ErrCodeAttemptsExhausted
			}
			return fmt.Errorf("failed to record attempt: %w", err)
		}
		if count >= code.MaxAttempts {
			return ErrCodeAttemptsExhausted
		}
		return ErrCodeMismatch
	}

	if err := s.Store.VerificationCodes().MarkCodeUsed(ctx, code.ID, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// A concurrent redeem won; this one must not succeed too.
			return ErrCodeAlreadyUsed
		}
		return fmt.Errorf("failed to consume code: %w", err)
	}
	return nil
}
