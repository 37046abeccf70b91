package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
)

// TokenSize256 is the byte length of opaque refresh tokens: 256 bits of
// entropy, 43 chars once base64url encoded.
const TokenSize256 = 32

// GenerateToken returns a cryptographically random token of the given
// byte length, base64url encoded without padding.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateNumericCode creates a cryptographically secure code of the given
// number of decimal digits, zero-padded. Used for SMS and email verification
// codes where the user types the value by hand.
func GenerateNumericCode(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("code digits must be between 1 and 18, got %d", digits)
	}

	max := big.NewInt(1)
	for range digits {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate random code: %w", err)
	}

	return fmt.Sprintf("%0*d", digits, n), nil
}

// FingerprintToken returns the SHA-256 fingerprint of a token, base64url
// encoded. Stored tokens are kept only as fingerprints so a database
// leak exposes nothing redeemable.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
