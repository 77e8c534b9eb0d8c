package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// GenerateCode returns a cryptographically secure numeric code of n digits,
// zero-padded and uniformly distributed. Used for emailed verification codes.
func GenerateCode(n int) (string, error) {
	if n <= 0 || n > 18 {
		return "", fmt.Errorf("code length must be between 1 and 18, got %d", n)
	}

	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	s := v.String()
	if len(s) < n {
		s = strings.Repeat("0", n-len(s)) + s
	}
	return s, nil
}
