package domain

import "time"

// TokenPair is what a completed login or refresh returns: a short-lived
// signed access token and the opaque single-use refresh token.
type TokenPair struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	TokenType    string        `json:"tokenType,omitempty"` // typically "Bearer"
	ExpiresIn    time.Duration `json:"expiresIn"`           // seconds until access expiry
}

// RefreshToken models the stored refresh token record. Only the SHA-256
// fingerprint of the opaque value is persisted.
type RefreshToken struct {
	ID        string // ULID
	UserID    int64
	TokenHash string // base64url SHA-256 of the opaque token
	SessionID string // session this token chain belongs to
	DeviceID  string // device lineage, inherited across rotations
	IP        string
	UserAgent string
	ExpiresAt time.Time
	RevokedAt *time.Time // nil while the token is still usable
	CreatedAt time.Time
}

// Valid reports whether the token may still be presented.
func (t RefreshToken) Valid(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
