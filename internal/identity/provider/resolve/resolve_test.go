package resolve

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/clearmind-health/identity/internal/identity/provider"
)

// fakeProvider satisfies the provider contract with canned responses; only
// the routing-relevant surface carries behavior.
type fakeProvider struct {
	typ       provider.Type
	issuer    string
	verifyErr error
}

func (f *fakeProvider) Type() provider.Type { return f.typ }
func (f *fakeProvider) Issuer() string      { return f.issuer }

func (f *fakeProvider) SignUp(context.Context, provider.SignUpInput) (string, bool, error) {
	return "uid-" + string(f.typ), true, nil
}

func (f *fakeProvider) SignIn(context.Context, string, string) (provider.Principal, provider.Tokens, error) {
	return provider.Principal{UID: "uid-" + string(f.typ)}, provider.Tokens{}, nil
}

func (f *fakeProvider) VerifyToken(context.Context, string) (provider.Principal, error) {
	if f.verifyErr != nil {
		return provider.Principal{}, f.verifyErr
	}
	return provider.Principal{UID: "uid-" + string(f.typ)}, nil
}

func (f *fakeProvider) ConfirmSignUp(context.Context, string, string) error          { return nil }
func (f *fakeProvider) ResendCode(context.Context, string) error                     { return nil }
func (f *fakeProvider) ForgotPassword(context.Context, string) error                 { return nil }
func (f *fakeProvider) ConfirmForgotPassword(context.Context, string, string, string) error {
	return nil
}
func (f *fakeProvider) RefreshToken(context.Context, string) (provider.Tokens, error) {
	return provider.Tokens{}, nil
}
func (f *fakeProvider) SignOut(context.Context, string) error { return nil }

func hsToken(t *testing.T) string {
	t.Helper()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  "local-issuer",
		Subject: "sub-1",
	}).SignedString([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return raw
}

func rsToken(t *testing.T, issuer string) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Issuer:  issuer,
		Subject: "sub-1",
	}).SignedString(key)
	require.NoError(t, err)
	return raw
}

func TestByTokenRoutesHSToLocal(t *testing.T) {
	local := &fakeProvider{typ: provider.TypeLocal}
	pool := &fakeProvider{typ: provider.TypeUserPool, issuer: "https://pool.example.com"}
	r := New(provider.TypeLocal, pool, local)

	p, err := r.ByToken(hsToken(t))
	require.NoError(t, err)
	require.Equal(t, provider.TypeLocal, p.Type())
}

func TestByTokenRoutesRSByIssuer(t *testing.T) {
	local := &fakeProvider{typ: provider.TypeLocal}
	pool := &fakeProvider{typ: provider.TypeUserPool, issuer: "https://pool.example.com"}
	r := New(provider.TypeLocal, pool, local)

	p, err := r.ByToken(rsToken(t, "https://pool.example.com"))
	require.NoError(t, err)
	require.Equal(t, provider.TypeUserPool, p.Type())

	_, err = r.ByToken(rsToken(t, "https://elsewhere.example.com"))
	require.ErrorIs(t, err, ErrNoProvider)
}

func TestByTokenRejectsGarbage(t *testing.T) {
	r := New(provider.TypeLocal, &fakeProvider{typ: provider.TypeLocal})

	_, err := r.ByToken("not-a-jwt")
	require.ErrorIs(t, err, ErrNoProvider)
}

func TestForEmailOrdering(t *testing.T) {
	local := &fakeProvider{typ: provider.TypeLocal}
	pool := &fakeProvider{typ: provider.TypeUserPool, issuer: "https://pool.example.com"}
	r := New(provider.TypeLocal, pool, local)

	order := func(current provider.Type) []provider.Type {
		var types []provider.Type
		for _, p := range r.ForEmail(current) {
			types = append(types, p.Type())
		}
		return types
	}

	// The user's current provider leads, then the primary, then the rest.
	require.Equal(t, []provider.Type{provider.TypeUserPool, provider.TypeLocal}, order(provider.TypeUserPool))

	// No current provider falls straight to the primary.
	require.Equal(t, []provider.Type{provider.TypeLocal, provider.TypeUserPool}, order(""))

	// Unknown current providers are skipped, not tried.
	require.Equal(t, []provider.Type{provider.TypeLocal, provider.TypeUserPool}, order("legacy"))
}

func TestVerifyAny(t *testing.T) {
	local := &fakeProvider{typ: provider.TypeLocal}
	pool := &fakeProvider{typ: provider.TypeUserPool, issuer: "https://pool.example.com"}
	r := New(provider.TypeLocal, pool, local)

	principal, ptype, err := r.VerifyAny(context.Background(), hsToken(t))
	require.NoError(t, err)
	require.Equal(t, provider.TypeLocal, ptype)
	require.Equal(t, "uid-local", principal.UID)
}

func TestVerifyAnyPropagatesProviderError(t *testing.T) {
	verifyErr := provider.NewError(provider.TypeLocal, provider.CodeInvalidCredentials, "bad token", nil)
	local := &fakeProvider{typ: provider.TypeLocal, verifyErr: verifyErr}
	r := New(provider.TypeLocal, local)

	_, ptype, err := r.VerifyAny(context.Background(), hsToken(t))
	require.Equal(t, provider.TypeLocal, ptype)
	require.ErrorIs(t, err, verifyErr)
}

func TestVerifyAnyFallsBackOnUnclassifiableToken(t *testing.T) {
	badToken := provider.NewError(provider.TypeLocal, provider.CodeInvalidCredentials, "bad token", nil)
	local := &fakeProvider{typ: provider.TypeLocal, verifyErr: badToken}
	pool := &fakeProvider{typ: provider.TypeUserPool, issuer: "https://pool.example.com"}
	r := New(provider.TypeLocal, pool, local)

	// An opaque access token has no JOSE header to classify on; the pool
	// still gets to verify it after the primary declines.
	principal, ptype, err := r.VerifyAny(context.Background(), "opaque-pool-access-token")
	require.NoError(t, err)
	require.Equal(t, provider.TypeUserPool, ptype)
	require.Equal(t, "uid-userpool", principal.UID)
}

func TestVerifyAnyUnclassifiableRejectedEverywhere(t *testing.T) {
	localErr := provider.NewError(provider.TypeLocal, provider.CodeInvalidCredentials, "bad token", nil)
	poolErr := provider.NewError(provider.TypeUserPool, provider.CodeInvalidCredentials, "bad token", nil)
	local := &fakeProvider{typ: provider.TypeLocal, verifyErr: localErr}
	pool := &fakeProvider{typ: provider.TypeUserPool, issuer: "https://pool.example.com", verifyErr: poolErr}
	r := New(provider.TypeLocal, pool, local)

	_, _, err := r.VerifyAny(context.Background(), "opaque-junk")
	require.Error(t, err)
	require.Equal(t, provider.CodeInvalidCredentials, provider.CodeOf(err))
}

func TestGetUnknownProvider(t *testing.T) {
	r := New(provider.TypeLocal, &fakeProvider{typ: provider.TypeLocal})

	_, err := r.Get("saml")
	require.ErrorIs(t, err, ErrNoProvider)
}
