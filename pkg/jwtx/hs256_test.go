package jwtx_test

import (
	"testing"
	"time"

	"github.com/clearmind-health/identity/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestSignAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	signer, err := jwtx.NewSigner(testSecret, "identity-test")
	require.NoError(t, err)

	claims := jwtx.NewAccessClaims(
		42, "alice@example.com", "client", "sess-1", "local",
		[]string{"pwd"}, time.Minute, "identity-test", time.Now(),
	)

	raw, err := signer.Sign(claims)
	require.NoError(t, err)

	got, err := signer.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, int64(42), got.UserID())
	require.Equal(t, "alice@example.com", got.Email)
	require.Equal(t, "client", got.Role)
	require.Equal(t, "sess-1", got.SID)
	require.Equal(t, "local", got.Provider)
	require.Equal(t, []string{"pwd"}, got.AMR)
}

func TestVerifyRejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := jwtx.NewSigner([]byte("short"), "identity-test")
	require.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	t.Parallel()

	signer, err := jwtx.NewSigner(testSecret, "identity-test")
	require.NoError(t, err)

	claims := jwtx.NewAccessClaims(
		1, "bob@example.com", "client", "sess-2", "local",
		nil, time.Minute, "identity-test", time.Now().Add(-time.Hour),
	)
	raw, err := signer.Sign(claims)
	require.NoError(t, err)

	_, err = signer.Verify(raw)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	a, err := jwtx.NewSigner(testSecret, "issuer-a")
	require.NoError(t, err)
	b, err := jwtx.NewSigner(testSecret, "issuer-b")
	require.NoError(t, err)

	claims := jwtx.NewAccessClaims(
		1, "x@example.com", "client", "s", "local",
		nil, time.Minute, "issuer-a", time.Now(),
	)
	raw, err := a.Sign(claims)
	require.NoError(t, err)

	_, err = b.Verify(raw)
	require.ErrorIs(t, err, jwtx.ErrIssuer)
}

func TestVerifyRejectsTampering(t *testing.T) {
	t.Parallel()

	signer, err := jwtx.NewSigner(testSecret, "identity-test")
	require.NoError(t, err)

	other, err := jwtx.NewSigner([]byte("ffffffffffffffffffffffffffffffff"), "identity-test")
	require.NoError(t, err)

	claims := jwtx.NewAccessClaims(
		7, "eve@example.com", "admin", "s", "local",
		nil, time.Minute, "identity-test", time.Now(),
	)
	raw, err := other.Sign(claims)
	require.NoError(t, err)

	_, err = signer.Verify(raw)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestPeekHeader(t *testing.T) {
	t.Parallel()

	signer, err := jwtx.NewSigner(testSecret, "identity-test")
	require.NoError(t, err)

	claims := jwtx.NewAccessClaims(
		9, "p@example.com", "client", "s", "local",
		nil, time.Minute, "identity-test", time.Now(),
	)
	raw, err := signer.Sign(claims)
	require.NoError(t, err)

	alg, iss, err := jwtx.PeekHeader(raw)
	require.NoError(t, err)
	require.Equal(t, "HS256", alg)
	require.Equal(t, "identity-test", iss)

	_, _, err = jwtx.PeekHeader("not.a.jwt")
	require.Error(t, err)
}
