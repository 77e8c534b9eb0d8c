package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/loandocs/loandocs/internal/auth/domain"
	"github.com/loandocs/loandocs/internal/auth/identity"
	"github.com/loandocs/loandocs/internal/auth/store"
	"github.com/loandocs/loandocs/internal/auth/store/drivers/sqlite"
	"github.com/loandocs/loandocs/pkg/cryptox"
	"github.com/loandocs/loandocs/pkg/idx"
	"github.com/loandocs/loandocs/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeProvider is an in-memory identity provider. Any assertion equal to
// goodAssertion verifies to the configured identity.
type fakeProvider struct {
	email         string
	goodAssertion string
}

func (f *fakeProvider) CreateSignInLink(ctx context.Context, email string, ttl time.Duration) (identity.SignInLink, error) {
	return identity.SignInLink{
		URL:                "https://id.example/links/" + email,
		ExternalIdentityID: "ext-abc",
		ExpiresAt:          time.Now().Add(ttl),
	}, nil
}

func (f *fakeProvider) VerifyAssertion(ctx context.Context, token string) (identity.Assertion, error) {
	if token != f.goodAssertion {
		return identity.Assertion{}, identity.ErrAssertionInvalid
	}
	return identity.Assertion{ExternalIdentityID: "ext-abc", Email: f.email}, nil
}

// captureMailer records every send instead of talking to SMTP.
type captureMailer struct {
	mu    sync.Mutex
	links []string
	codes []string
}

func (m *captureMailer) SendMagicLink(ctx context.Context, to, url string, ttlHours int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, url)
	return nil
}

func (m *captureMailer) SendVerificationCode(ctx context.Context, to, code string, ttlMinutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, code)
	return nil
}

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.codes)
	return m.codes[len(m.codes)-1]
}

type testStack struct {
	store        store.Store
	mailer       *captureMailer
	provider     *fakeProvider
	audit        *AuditService
	tokens       *TokenService
	links        *MagicLinkService
	sessions     *SessionService
	verification *VerificationService
}

func newTestStack(t *testing.T, email string, twoFactor bool) *testStack {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.Default()
	audit := NewAuditService(st, logger, 64)
	t.Cleanup(audit.Close)

	codec, err := jwtx.NewCodec(testSecret, "loandocs-auth", []string{"loandocs-portal"})
	require.NoError(t, err)

	rateLimits := &RateLimitService{Store: st, Audit: audit}
	tokens := &TokenService{Store: st, Codec: codec, Audit: audit}

	m := &captureMailer{}
	p := &fakeProvider{email: email, goodAssertion: "good-assertion"}

	verification := &VerificationService{
		Store:      st,
		Mailer:     m,
		RateLimits: rateLimits,
		Audit:      audit,
		Logger:     logger,
	}

	links := &MagicLinkService{
		Store:      st,
		Identity:   p,
		Mailer:     m,
		RateLimits: rateLimits,
		Audit:      audit,
		Logger:     logger,
	}

	sessions := &SessionService{
		Store:             st,
		Identity:          p,
		Tokens:            tokens,
		Verification:      verification,
		Audit:             audit,
		Logger:            logger,
		TwoFactorRequired: twoFactor,
	}

	return &testStack{
		store:        st,
		mailer:       m,
		provider:     p,
		audit:        audit,
		tokens:       tokens,
		links:        links,
		sessions:     sessions,
		verification: verification,
	}
}

func TestMagicLinkToSessionTokenFlow(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, "borrower@example.com", true)

	issued, err := stack.links.Issue(ctx, IssueLinkParams{
		Email:    "Borrower@Example.com",
		LoanIDs:  []string{"loan-9"},
		TTLHours: 48,
	})
	require.NoError(t, err)
	require.Equal(t, domain.SessionPending, issued.Session.Status)
	require.Len(t, stack.mailer.links, 1)
	require.WithinDuration(t, time.Now().Add(48*time.Hour), issued.Link.ExpiresAt, time.Minute)

	// The borrower follows the link; the provider hands back an assertion.
	result, err := stack.sessions.Exchange(ctx, "good-assertion")
	require.NoError(t, err)
	require.True(t, result.VerificationRequired)
	require.Empty(t, result.Token)
	require.Equal(t, issued.Session.SessionID, result.SessionID)

	// The link is consumed even before the code step.
	_, err = stack.store.MagicLinks().GetActiveMagicLinkBySessionID(ctx, issued.Session.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	// The emailed code completes the session.
	code := stack.mailer.lastCode(t)
	require.Len(t, code, domain.CodeLength)

	token, claims, err := stack.sessions.CompleteWithCode(ctx, result.SessionID, code)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, result.SessionID, claims.SID)
	require.Equal(t, "borrower@example.com", claims.Email)
	require.Equal(t, []string{"loan-9"}, claims.LoanIDs)

	// The minted token authenticates.
	got, err := stack.tokens.Authenticate(ctx, token)
	require.NoError(t, err)
	require.Equal(t, claims.SID, got.SID)

	sess, err := stack.sessions.Get(ctx, result.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionVerified, sess.Status)
	require.NotNil(t, sess.LastAccessedAt)
}

func TestExchangeWithoutTwoFactorMintsDirectly(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, "fast@example.com", false)

	_, err := stack.links.Issue(ctx, IssueLinkParams{Email: "fast@example.com"})
	require.NoError(t, err)

	result, err := stack.sessions.Exchange(ctx, "good-assertion")
	require.NoError(t, err)
	require.False(t, result.VerificationRequired)
	require.NotEmpty(t, result.Token)
	require.Empty(t, stack.mailer.codes)

	_, err = stack.tokens.Authenticate(ctx, result.Token)
	require.NoError(t, err)
}

func TestExchangeRejectsBadAssertion(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, "bad@example.com", true)

	_, err := stack.links.Issue(ctx, IssueLinkParams{Email: "bad@example.com"})
	require.NoError(t, err)

	_, err = stack.sessions.Exchange(ctx, "forged")
	require.ErrorIs(t, err, identity.ErrAssertionInvalid)
}

func TestExchangeIsOneShot(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, "oneshot@example.com", false)

	_, err := stack.links.Issue(ctx, IssueLinkParams{Email: "oneshot@example.com"})
	require.NoError(t, err)

	_, err = stack.sessions.Exchange(ctx, "good-assertion")
	require.NoError(t, err)

	// The session completed; replaying the assertion finds nothing pending.
	_, err = stack.sessions.Exchange(ctx, "good-assertion")
	require.ErrorIs(t, err, ErrSessionNotPending)
}

func TestWrongCodesExhaustAttempts(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, "exhaust@example.com", true)

	_, err := stack.links.Issue(ctx, IssueLinkParams{Email: "exhaust@example.com"})
	require.NoError(t, err)

	result, err := stack.sessions.Exchange(ctx, "good-assertion")
	require.NoError(t, err)

	correct := stack.mailer.lastCode(t)
	wrong := "000000"
	if wrong == correct {
		wrong = "000001"
	}

	for i := 0; i < domain.MaxCodeAttempts; i++ {
		_, _, err := stack.sessions.CompleteWithCode(ctx, result.SessionID, wrong)
		require.ErrorIs(t, err, ErrCodeRejected)
	}

	// Even the correct code is dead once attempts ran out.
	_, _, err = stack.sessions.CompleteWithCode(ctx, result.SessionID, correct)
	require.ErrorIs(t, err, ErrCodeAttemptsExhausted)

	sess, err := stack.sessions.Get(ctx, result.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionPending, sess.Status)
}

func TestExpiredCodeIsRejected(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, "stale@example.com", true)

	issued, err := stack.links.Issue(ctx, IssueLinkParams{Email: "stale@example.com"})
	require.NoError(t, err)

	result, err := stack.sessions.Exchange(ctx, "good-assertion")
	require.NoError(t, err)

	// Swap the live code for one whose TTL already passed.
	now := time.Now().UTC()
	require.NoError(t, stack.store.VerificationCodes().DeleteUnusedCodesBySessionID(ctx, issued.Session.ID))
	require.NoError(t, stack.store.VerificationCodes().CreateVerificationCode(ctx, domain.VerificationCode{
		ID:          idx.New().String(),
		SessionID:   issued.Session.ID,
		CodeHash:    cryptox.Hash("654321"),
		ExpiresAt:   now.Add(-time.Minute),
		MaxAttempts: domain.MaxCodeAttempts,
		CreatedAt:   now,
	}))

	// Even the matching digits are dead once the TTL passed.
	_, _, err = stack.sessions.CompleteWithCode(ctx, result.SessionID, "654321")
	require.ErrorIs(t, err, ErrCodeExpired)
	require.ErrorIs(t, err, ErrCodeRejected)

	sess, err := stack.sessions.Get(ctx, result.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionPending, sess.Status)
}

func TestConsumedCodeCannotBeReplayed(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, "replay@example.com", true)

	issued, err := stack.links.Issue(ctx, IssueLinkParams{Email: "replay@example.com"})
	require.NoError(t, err)

	result, err := stack.sessions.Exchange(ctx, "good-assertion")
	require.NoError(t, err)

	code := stack.mailer.lastCode(t)
	_, _, err = stack.sessions.CompleteWithCode(ctx, result.SessionID, code)
	require.NoError(t, err)

	// The session already left pending, so the replay hits the
	// verification layer and finds the consumed code.
	err = stack.verification.Verify(ctx, issued.Session, code)
	require.ErrorIs(t, err, ErrCodeAlreadyUsed)
	require.ErrorIs(t, err, ErrCodeRejected)
}

func TestReissuedCodeSupersedesOldOne(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, "supersede@example.com", true)

	_, err := stack.links.Issue(ctx, IssueLinkParams{Email: "supersede@example.com"})
	require.NoError(t, err)

	result, err := stack.sessions.Exchange(ctx, "good-assertion")
	require.NoError(t, err)

	first := stack.mailer.lastCode(t)
	require.NoError(t, stack.sessions.RequestCode(ctx, result.SessionID))
	second := stack.mailer.lastCode(t)

	if first != second {
		_, _, err = stack.sessions.CompleteWithCode(ctx, result.SessionID, first)
		require.ErrorIs(t, err, ErrCodeRejected)
	}

	_, _, err = stack.sessions.CompleteWithCode(ctx, result.SessionID, second)
	require.NoError(t, err)
}

func TestRevokedSessionFailsValidation(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, "revoked@example.com", false)

	_, err := stack.links.Issue(ctx, IssueLinkParams{Email: "revoked@example.com"})
	require.NoError(t, err)

	result, err := stack.sessions.Exchange(ctx, "good-assertion")
	require.NoError(t, err)

	_, err = stack.tokens.Authenticate(ctx, result.Token)
	require.NoError(t, err)

	require.NoError(t, stack.sessions.Revoke(ctx, result.SessionID, "admin-1"))

	// The JWT is still cryptographically valid but the session is dead.
	_, err = stack.tokens.Authenticate(ctx, result.Token)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRefreshIssuesWorkingToken(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, "refresh@example.com", false)

	_, err := stack.links.Issue(ctx, IssueLinkParams{Email: "refresh@example.com"})
	require.NoError(t, err)

	result, err := stack.sessions.Exchange(ctx, "good-assertion")
	require.NoError(t, err)

	fresh, claims, err := stack.tokens.Refresh(ctx, result.Token)
	require.NoError(t, err)
	require.NotEmpty(t, fresh)
	require.Equal(t, result.SessionID, claims.SID)

	_, err = stack.tokens.Authenticate(ctx, fresh)
	require.NoError(t, err)
}

func TestMagicLinkIssueRateLimited(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, "limited@example.com", true)

	for i := 0; i < MagicLinkRequestLimit; i++ {
		_, err := stack.links.Issue(ctx, IssueLinkParams{Email: "limited@example.com"})
		require.NoError(t, err, "issue %d", i+1)
	}

	_, err := stack.links.Issue(ctx, IssueLinkParams{Email: "limited@example.com"})
	require.ErrorIs(t, err, ErrRateLimited)

	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited)
	require.Greater(t, limited.RetryAfter, time.Duration(0))

	// Other addresses are unaffected.
	_, err = stack.links.Issue(ctx, IssueLinkParams{Email: "other@example.com"})
	require.NoError(t, err)
}

func TestIssueRejectsTTLOutOfRange(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, "ttl@example.com", true)

	for _, hours := range []int{-1, domain.MagicLinkMaxTTLHours + 1} {
		_, err := stack.links.Issue(ctx, IssueLinkParams{
			Email:    fmt.Sprintf("ttl%d@example.com", hours),
			TTLHours: hours,
		})
		require.ErrorIs(t, err, ErrInvalidTTL)
	}
}

func TestExtendKeepsSessionInLockstep(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, "extend@example.com", true)

	issued, err := stack.links.Issue(ctx, IssueLinkParams{Email: "extend@example.com", TTLHours: 2})
	require.NoError(t, err)

	extended, err := stack.links.Extend(ctx, issued.Link.ID, 100)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(100*time.Hour), extended.Link.ExpiresAt, time.Minute)

	sess, err := stack.sessions.Get(ctx, issued.Session.SessionID)
	require.NoError(t, err)
	require.WithinDuration(t, extended.Link.ExpiresAt, sess.ExpiresAt, time.Second)
}

func TestRevokeLinkRevokesSession(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, "lockstep@example.com", true)

	issued, err := stack.links.Issue(ctx, IssueLinkParams{Email: "lockstep@example.com"})
	require.NoError(t, err)

	require.NoError(t, stack.links.Revoke(ctx, issued.Link.ID, "admin-1", "borrower request"))

	sess, err := stack.sessions.Get(ctx, issued.Session.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionRevoked, sess.Status)

	// A revoked session can no longer be exchanged.
	_, err = stack.sessions.Exchange(ctx, "good-assertion")
	require.ErrorIs(t, err, ErrSessionNotPending)
}
