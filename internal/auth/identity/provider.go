// Package identity wraps the external identity provider that performs the
// actual human verification. The provider mints one-time sign-in URLs and
// verifies the assertions the borrower's browser brings back; this service
// keeps its own expirable session state layered on top.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAssertionInvalid is returned when the assertion is malformed,
	// forged, or was already consumed upstream.
	ErrAssertionInvalid = errors.New("identity: assertion invalid")

	// ErrAssertionExpired is returned when the assertion was genuine but
	// past its validity window.
	ErrAssertionExpired = errors.New("identity: assertion expired")
)

// Assertion is the provider's confirmation that a human completed a
// sign-in link. It binds the external identity to the email the link was
// sent to.
type Assertion struct {
	ExternalIdentityID string
	Email              string
}

// SignInLink is a one-time URL minted by the provider.
type SignInLink struct {
	URL                string
	ExternalIdentityID string
	ExpiresAt          time.Time
}

// Provider is the upstream identity service. Implementations must treat
// every error from VerifyAssertion as terminal for the assertion; there is
// no retry that turns an invalid assertion valid.
type Provider interface {
	// CreateSignInLink asks the provider to mint a one-time sign-in URL
	// for the address, valid for ttl.
	CreateSignInLink(ctx context.Context, email string, ttl time.Duration) (SignInLink, error)

	// VerifyAssertion checks an assertion token returned by the
	// borrower's browser after following a sign-in link.
	VerifyAssertion(ctx context.Context, token string) (Assertion, error)
}

// UpstreamError carries a provider-side failure that is neither an invalid
// nor an expired assertion, e.g. a 5xx or a network fault.
type UpstreamError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("identity: upstream %d %s: %s", e.StatusCode, e.Code, e.Description)
}
