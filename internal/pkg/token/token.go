// internal/pkg/token/token.go
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

// NumericCode returns a fixed-length numeric code, zero-padded. Digits are
// drawn uniformly so leading zeros are as likely as any other digit.
func NumericCode(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("invalid code length %d", digits)
	}

	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	return fmt.Sprintf("%0*d", digits, n), nil
}

// Opaque returns an unguessable URL-safe token.
func Opaque() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// SessionID returns an opaque session identifier. Same entropy as Opaque;
// kept separate so call sites read as what they mean.
func SessionID() (string, error) {
	return Opaque()
}
