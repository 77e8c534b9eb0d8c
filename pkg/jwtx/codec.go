package jwtx

import (
	"errors"
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HS256 secret we accept. Anything below
// 256 bits makes brute-forcing the signature practical.
const MinSecretLength = 32

var (
	// ErrInvalidToken is the only failure callers may surface. Internal
	// causes (expired, wrong issuer, wrong type, bad signature) wrap it so
	// they can be logged without leaking to the client.
	ErrInvalidToken = errors.New("jwtx: invalid token")

	ErrShortSecret = errors.New("jwtx: signing secret too short")
)

// Codec signs and verifies HS256 tokens with a shared secret. Issuer and
// audience are fixed at construction and enforced on every verification.
type Codec struct {
	secret   []byte
	issuer   string
	audience []string
}

func NewCodec(secret, issuer string, audience []string) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrShortSecret
	}
	return &Codec{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
	}, nil
}

// Issuer returns the issuer the codec stamps and enforces.
func (c *Codec) Issuer() string { return c.issuer }

// Audience returns the audience the codec stamps and enforces.
func (c *Codec) Audience() []string { return c.audience }

// Sign produces a compact HS256 JWT for the given claims.
func (c *Codec) Sign(claims Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, enforcing signature, expiry, issuer,
// audience and the expected token type. Every failure wraps ErrInvalidToken;
// the wrapped detail is for logs only and must never reach the caller's
// response body.
func (c *Codec) Verify(tokenString, wantType string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if err := c.validateAudience(claims); err != nil {
		return Claims{}, err
	}

	if claims.TokenType != wantType {
		return Claims{}, fmt.Errorf("%w: token type mismatch", ErrInvalidToken)
	}

	return claims, nil
}

func (c *Codec) validateAudience(claims Claims) error {
	if len(c.audience) == 0 {
		return nil
	}
	for _, want := range c.audience {
		if slices.Contains(claims.Audience, want) {
			return nil
		}
	}
	return fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
}
