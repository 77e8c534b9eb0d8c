package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loandocs/loandocs/internal/auth/domain"
	"github.com/loandocs/loandocs/internal/auth/store"
	"github.com/loandocs/loandocs/pkg/jwtx"
)

// ErrUnauthenticated is the only failure Authenticate and Refresh surface.
// The concrete cause (bad signature, expired, revoked session, unknown sid)
// is wrapped for logs and never reaches the response body.
var ErrUnauthenticated = errors.New("invalid or expired session token")

// TokenService mints and validates session bearer tokens. A token is only
// as live as the session behind it: validation always re-reads the session
// row, so revocation and TTL lapse take effect immediately regardless of
// the token's own expiry.
type TokenService struct {
	Store    store.Store
	Codec    *jwtx.Codec
	Audit    *AuditService
	TokenTTL time.Duration // zero means jwtx.DefaultSessionTokenTTL
}

func (s *TokenService) tokenTTL() time.Duration {
	if s.TokenTTL > 0 {
		return s.TokenTTL
	}
	return jwtx.DefaultSessionTokenTTL
}

// Mint issues a session token for a live session. The token expiry never
// outlives the session expiry.
func (s *TokenService) Mint(ctx context.Context, user domain.User, sess domain.AuthSession) (string, jwtx.Claims, error) {
	now := time.Now().UTC()

	ttl := s.tokenTTL()
	if remaining := sess.ExpiresAt.Sub(now); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return "", jwtx.Claims{}, fmt.Errorf("%w: session expired", ErrUnauthenticated)
	}

	claims := jwtx.NewSessionClaims(
		user.ID,
		sess.SessionID,
		user.Email,
		string(user.Role),
		sess.LoanIDs,
		ttl,
		s.Codec.Issuer(),
		s.Codec.Audience(),
		now,
	)

	token, err := s.Codec.Sign(claims)
	if err != nil {
		return "", jwtx.Claims{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, claims, nil
}

// Authenticate is the single fail-closed validation funnel: signature,
// expiry, issuer, audience and token type via the codec, then session
// liveness from the store. It satisfies httpx.TokenAuthenticator.
func (s *TokenService) Authenticate(ctx context.Context, token string) (jwtx.Claims, error) {
	claims, err := s.Codec.Verify(token, jwtx.TokenTypeSession)
	if err != nil {
		return jwtx.Claims{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	sess, err := s.Store.Sessions().GetSessionBySessionID(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return jwtx.Claims{}, fmt.Errorf("%w: unknown session", ErrUnauthenticated)
		}
		return jwtx.Claims{}, fmt.Errorf("failed to load session: %w", err)
	}

	now := time.Now().UTC()
	if !sess.IsLive(now) {
		return jwtx.Claims{}, fmt.Errorf("%w: session %s", ErrUnauthenticated, sess.EffectiveStatus(now))
	}

	// Best effort; a failed touch must not fail the request.
	_ = s.Store.Sessions().TouchSession(ctx, sess.ID, now)

	return claims, nil
}

// Refresh exchanges a valid token for a fresh one with a new expiry, still
// capped by the session TTL. The session itself is never extended here.
func (s *TokenService) Refresh(ctx context.Context, token string) (string, jwtx.Claims, error) {
	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		s.Audit.Record(domain.AuditEvent{
			EventType:    domain.AuditTokenRefreshed,
			Success:      false,
			ErrorMessage: err.Error(),
		})
		return "", jwtx.Claims{}, err
	}

	sess, err := s.Store.Sessions().GetSessionBySessionID(ctx, claims.SID)
	if err != nil {
		return "", jwtx.Claims{}, fmt.Errorf("failed to load session: %w", err)
	}

	user, err := s.Store.Users().GetUserByID(ctx, sess.UserID)
	if err != nil {
		return "", jwtx.Claims{}, fmt.Errorf("failed to load user: %w", err)
	}

	fresh, freshClaims, err := s.Mint(ctx, user, sess)
	if err != nil {
		return "", jwtx.Claims{}, err
	}

	s.Audit.Record(domain.AuditEvent{
		SessionID: sess.ID,
		UserID:    user.ID,
		EventType: domain.AuditTokenRefreshed,
		Success:   true,
	})
	return fresh, freshClaims, nil
}
