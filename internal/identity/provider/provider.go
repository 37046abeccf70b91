// Package provider defines the capability contract shared by the external
// identity providers this service fronts. The auth core never talks to a
// provider except through IdentityProvider, and never sees a provider error
// that has not been normalized to a Code.
package provider

import (
	"context"
	"time"
)

// Type tags a configured provider instance. A user's current_auth_provider
// column holds one of these values.
type Type string

const (
	// TypeUserPool is a hosted user-pool provider reached over HTTP. Its
	// tokens are RS256-signed with the pool issuer in the iss claim.
	TypeUserPool Type = "userpool"

	// TypeLocal is the store-backed provider. Its tokens are HS256-signed
	// with the service secret.
	TypeLocal Type = "local"
)

// Principal is a provider-verified identity, the input to reconciliation.
type Principal struct {
	UID           string // provider-scoped subject
	Email         string
	Name          string
	RoleHint      string // optional role attribute carried by the provider
	EmailVerified bool
}

// Tokens are whatever credential material the provider handed back on a
// successful sign-in. The core issues its own token pair regardless; the
// provider's access token is only retained for best-effort sign-out.
type Tokens struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresIn    time.Duration
}

// SignUpInput carries registration attributes to the provider.
type SignUpInput struct {
	Email      string
	Password   string
	Attributes map[string]string // e.g. given_name, family_name, custom:role
}

// IdentityProvider is the uniform capability set implemented once per
// external provider. Every method may fail with a *Error carrying one of the
// normalized codes.
type IdentityProvider interface {
	Type() Type

	// SignUp registers a principal and returns its provider-scoped uid.
	// confirmed reports whether the principal is immediately usable or
	// still needs code confirmation.
	SignUp(ctx context.Context, in SignUpInput) (uid string, confirmed bool, err error)

	// SignIn performs a credential check and returns the verified
	// principal plus the provider's own tokens.
	SignIn(ctx context.Context, email, password string) (Principal, Tokens, error)

	// VerifyToken validates a bearer token issued by this provider and
	// returns the principal it asserts.
	VerifyToken(ctx context.Context, token string) (Principal, error)

	ConfirmSignUp(ctx context.Context, email, code string) error
	ResendCode(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error

	// RefreshToken exchanges a provider refresh token. The core's own
	// rotation protocol does not use this; it exists for clients that hold
	// provider-native sessions.
	RefreshToken(ctx context.Context, refreshToken string) (Tokens, error)

	// SignOut is best-effort global sign-out at the provider.
	SignOut(ctx context.Context, accessToken string) error
}
