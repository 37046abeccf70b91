package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("jwtx: invalid token")
	ErrIssuer       = errors.New("jwtx: unexpected issuer")
)

// Signer signs access-token claims with HS256. The secret is the single
// signing secret for locally-issued access tokens; key rotation happens by
// redeploying with a new secret and letting the short access TTL age the old
// tokens out.
type Signer struct {
	secret []byte
	issuer string
}

// NewSigner builds a Signer. The secret must be at least 32 bytes.
func NewSigner(secret []byte, issuer string) (*Signer, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwtx: signing secret must be at least 32 bytes")
	}
	return &Signer{secret: secret, issuer: issuer}, nil
}

// Issuer returns the iss value this signer stamps on tokens.
func (s *Signer) Issuer() string { return s.issuer }

// Sign produces a compact HS256 JWT from the claims.
func (s *Signer) Sign(claims Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token minted by this signer. Expiry and
// not-before are enforced by the parser; issuer is checked explicitly.
func (s *Signer) Verify(raw string) (Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("jwtx: unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return Claims{}, ErrIssuer
	}
	return claims, nil
}

// PeekHeader parses a compact token without verifying it and returns the
// header algorithm and issuer claim. Used only for provider classification;
// never trust the result for authentication.
func PeekHeader(raw string) (alg, issuer string, err error) {
	parser := jwt.NewParser()
	var claims jwt.RegisteredClaims
	tok, _, err := parser.ParseUnverified(raw, &claims)
	if err != nil {
		return "", "", ErrInvalidToken
	}
	return tok.Method.Alg(), claims.Issuer, nil
}
