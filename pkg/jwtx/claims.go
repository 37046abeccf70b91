// Package jwtx issues and verifies the service's locally-signed access
// tokens (HS256 with a shared secret), and carries the small amount of JWK
// plumbing needed to verify RS256 tokens minted by a hosted user pool.
package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Access tokens stay short-lived; refresh tokens are the
// opaque rotated credential and live longer.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 12 * time.Hour
)

// Claims are the access-token claims. Changes must stay additive so older
// tokens keep verifying during a deploy.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the authenticated user.
	Email string `json:"email,omitempty"`

	// Role is the user's coarse primary role.
	Role string `json:"role,omitempty"`

	// SID is the session ID, stable across token refreshes.
	SID string `json:"sid,omitempty"`

	// Provider is the identity provider type that authenticated this
	// session ("userpool", "local").
	Provider string `json:"idp,omitempty"`

	// AMR is the authentication method reference history, e.g.
	// ["pwd", "mfa"].
	AMR []string `json:"amr,omitempty"`
}

// UserID returns the subject as the int64 user ID, or 0 when malformed.
func (c *Claims) UserID() int64 {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// NewAccessClaims builds minimally-correct claims for a user session.
func NewAccessClaims(
	userID int64,
	email, role, sid, providerType string,
	amr []string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Email:    email,
		Role:     role,
		SID:      sid,
		Provider: providerType,
		AMR:      amr,
	}
}

// NewProviderClaims builds claims for a provider-scoped principal token.
// The subject is the provider uid, not the surrogate user ID.
func NewProviderClaims(uid, email string, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Email: email,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
