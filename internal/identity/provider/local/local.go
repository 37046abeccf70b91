// Package local implements the store-backed identity provider. Principals
// live in the local_principals table, passwords are argon2id hashed and the
// provider mints HS256 tokens with the service secret.
package local

import (
	"context"
	"errors"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/internal/identity/notify"
	"github.com/clearmind-health/identity/internal/identity/provider"
	"github.com/clearmind-health/identity/internal/identity/store"
	"github.com/clearmind-health/identity/pkg/cryptox"
	"github.com/clearmind-health/identity/pkg/idx"
	"github.com/clearmind-health/identity/pkg/jwtx"
)

const (
	codeDigits = 6
	codeTTL    = 15 * time.Minute
)

type Provider struct {
	store    store.Store
	signer   *jwtx.Signer
	sender   notify.Sender
	tokenTTL time.Duration
}

func New(st store.Store, signer *jwtx.Signer, sender notify.Sender, tokenTTL time.Duration) *Provider {
	if tokenTTL <= 0 {
		tokenTTL = jwtx.DefaultAccessTokenTTL
	}
	return &Provider{
		store:    st,
		signer:   signer,
		sender:   sender,
		tokenTTL: tokenTTL,
	}
}

func (p *Provider) Type() provider.Type { return provider.TypeLocal }

func (p *Provider) SignUp(ctx context.Context, in provider.SignUpInput) (string, bool, error) {
	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return "", false, provider.NewError(provider.TypeLocal, provider.CodeUnknown, "hash password", err)
	}

	code, err := cryptox.GenerateNumericCode(codeDigits)
	if err != nil {
		return "", false, provider.NewError(provider.TypeLocal, provider.CodeUnknown, "generate code", err)
	}

	now := time.Now().UTC()
	expires := now.Add(codeTTL)
	rec := domain.LocalPrincipal{
		UID:                  idx.NewHandle(),
		Email:                in.Email,
		PasswordHash:         hash,
		ConfirmationCodeHash: cryptox.FingerprintToken(code),
		CodeExpiresAt:        &expires,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := p.store.LocalPrincipals().Create(ctx, rec); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return "", false, provider.NewError(provider.TypeLocal, provider.CodeAlreadyExists, "email already registered", err)
		}
		return "", false, provider.NewError(provider.TypeLocal, provider.CodeUnknown, "create principal", err)
	}

	if err := p.sender.SendEmail(ctx, in.Email, "Confirm your account", "Your confirmation code is "+code); err != nil {
		return "", false, provider.NewError(provider.TypeLocal, provider.CodeUnavailable, "send confirmation code", err)
	}

	return rec.UID, false, nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (provider.Principal, provider.Tokens, error) {
	rec, err := p.store.LocalPrincipals().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return provider.Principal{}, provider.Tokens{}, provider.NewError(provider.TypeLocal, provider.CodeNotFound, "no such principal", err)
		}
		return provider.Principal{}, provider.Tokens{}, provider.NewError(provider.TypeLocal, provider.CodeUnavailable, "lookup principal", err)
	}

	if err := cryptox.VerifyPassword(password, rec.PasswordHash); err != nil {
		return provider.Principal{}, provider.Tokens{}, provider.NewError(provider.TypeLocal, provider.CodeInvalidCredentials, "password mismatch", err)
	}

	if !rec.Confirmed {
		return provider.Principal{}, provider.Tokens{}, provider.NewError(provider.TypeLocal, provider.CodeNotConfirmed, "principal not confirmed", nil)
	}

	principal := provider.Principal{
		UID:           rec.UID,
		Email:         rec.Email,
		EmailVerified: true,
	}

	tokens, err := p.mintTokens(rec.UID, rec.Email)
	if err != nil {
		return provider.Principal{}, provider.Tokens{}, err
	}
	return principal, tokens, nil
}

func (p *Provider) VerifyToken(ctx context.Context, token string) (provider.Principal, error) {
	claims, err := p.signer.Verify(token)
	if err != nil {
		return provider.Principal{}, provider.NewError(provider.TypeLocal, provider.CodeInvalidCredentials, "token verification failed", err)
	}

	rec, err := p.store.LocalPrincipals().GetByUID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return provider.Principal{}, provider.NewError(provider.TypeLocal, provider.CodeNotFound, "no such principal", err)
		}
		return provider.Principal{}, provider.NewError(provider.TypeLocal, provider.CodeUnavailable, "lookup principal", err)
	}

	return provider.Principal{
		UID:           rec.UID,
		Email:         rec.Email,
		EmailVerified: rec.Confirmed,
	}, nil
}

func (p *Provider) ConfirmSignUp(ctx context.Context, email, code string) error {
	rec, err := p.store.LocalPrincipals().GetByEmail(ctx, email)
	if err != nil {
		return p.mapLookupErr(err)
	}

	if rec.Confirmed {
		return nil // idempotent
	}
	if !codeMatches(rec.ConfirmationCodeHash, code, rec.CodeExpiresAt) {
		return provider.NewError(provider.TypeLocal, provider.CodeInvalidCode, "confirmation code invalid or expired", nil)
	}

	if err := p.store.LocalPrincipals().SetConfirmed(ctx, rec.UID); err != nil {
		return provider.NewError(provider.TypeLocal, provider.CodeUnavailable, "confirm principal", err)
	}
	return nil
}

func (p *Provider) ResendCode(ctx context.Context, email string) error {
	rec, err := p.store.LocalPrincipals().GetByEmail(ctx, email)
	if err != nil {
		return p.mapLookupErr(err)
	}
	if rec.Confirmed {
		return provider.NewError(provider.TypeLocal, provider.CodeAlreadyExists, "principal already confirmed", nil)
	}

	code, err := cryptox.GenerateNumericCode(codeDigits)
	if err != nil {
		return provider.NewError(provider.TypeLocal, provider.CodeUnknown, "generate code", err)
	}
	expires := time.Now().UTC().Add(codeTTL)
	if err := p.store.LocalPrincipals().SetConfirmationCode(ctx, rec.UID, cryptox.FingerprintToken(code), expires); err != nil {
		return provider.NewError(provider.TypeLocal, provider.CodeUnavailable, "store code", err)
	}
	if err := p.sender.SendEmail(ctx, email, "Confirm your account", "Your confirmation code is "+code); err != nil {
		return provider.NewError(provider.TypeLocal, provider.CodeUnavailable, "send confirmation code", err)
	}
	return nil
}

func (p *Provider) ForgotPassword(ctx context.Context, email string) error {
	rec, err := p.store.LocalPrincipals().GetByEmail(ctx, email)
	if err != nil {
		return p.mapLookupErr(err)
	}

	code, err := cryptox.GenerateNumericCode(codeDigits)
	if err != nil {
		return provider.NewError(provider.TypeLocal, provider.CodeUnknown, "generate code", err)
	}
	expires := time.Now().UTC().Add(codeTTL)
	if err := p.store.LocalPrincipals().SetResetCode(ctx, rec.UID, cryptox.FingerprintToken(code), expires); err != nil {
		return provider.NewError(provider.TypeLocal, provider.CodeUnavailable, "store code", err)
	}
	if err := p.sender.SendEmail(ctx, email, "Reset your password", "Your password reset code is "+code); err != nil {
		return provider.NewError(provider.TypeLocal, provider.CodeUnavailable, "send reset code", err)
	}
	return nil
}

func (p *Provider) ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error {
	rec, err := p.store.LocalPrincipals().GetByEmail(ctx, email)
	if err != nil {
		return p.mapLookupErr(err)
	}

	if !codeMatches(rec.ResetCodeHash, code, rec.CodeExpiresAt) {
		return provider.NewError(provider.TypeLocal, provider.CodeInvalidCode, "reset code invalid or expired", nil)
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return provider.NewError(provider.TypeLocal, provider.CodeUnknown, "hash password", err)
	}

	if err := p.store.LocalPrincipals().UpdatePasswordHash(ctx, rec.UID, hash); err != nil {
		return provider.NewError(provider.TypeLocal, provider.CodeUnavailable, "update password", err)
	}
	if err := p.store.LocalPrincipals().ClearCodes(ctx, rec.UID); err != nil {
		return provider.NewError(provider.TypeLocal, provider.CodeUnavailable, "clear codes", err)
	}
	return nil
}

// RefreshToken is not part of the local provider's surface. The core's own
// rotation protocol covers local sessions end to end.
func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (provider.Tokens, error) {
	return provider.Tokens{}, provider.NewError(provider.TypeLocal, provider.CodeUnknown, "local provider does not exchange refresh tokens", nil)
}

// SignOut is a no-op: local tokens are short-lived and the core revokes its
// own session state.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	return nil
}

func (p *Provider) mintTokens(uid, email string) (provider.Tokens, error) {
	claims := jwtx.NewProviderClaims(uid, email, p.tokenTTL, p.signer.Issuer(), time.Now().UTC())
	signed, err := p.signer.Sign(claims)
	if err != nil {
		return provider.Tokens{}, provider.NewError(provider.TypeLocal, provider.CodeUnknown, "sign token", err)
	}
	return provider.Tokens{
		AccessToken: signed,
		IDToken:     signed,
		ExpiresIn:   p.tokenTTL,
	}, nil
}

func (p *Provider) mapLookupErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return provider.NewError(provider.TypeLocal, provider.CodeNotFound, "no such principal", err)
	}
	return provider.NewError(provider.TypeLocal, provider.CodeUnavailable, "lookup principal", err)
}

func codeMatches(storedHash, code string, expiresAt *time.Time) bool {
	if storedHash == "" || code == "" {
		return false
	}
	if expiresAt == nil || time.Now().UTC().After(*expiresAt) {
		return false
	}
	return cryptox.FingerprintToken(code) == storedHash
}
