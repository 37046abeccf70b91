package service

import (
	"context"
	"testing"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/pkg/cryptox"
	"github.com/clearmind-health/identity/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestIssueAndRotate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := createTestUser(t, st, "alice@example.com")
	sess := createTestSession(t, st, user.ID, "sess-1")
	svc := newTestTokenService(t, st)

	pair, err := svc.Issue(ctx, user, IssueInput{
		SessionID:    sess.ID,
		DeviceID:     sess.DeviceID,
		ProviderType: "local",
		AMR:          []string{AMRPassword},
	})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)

	claims, err := svc.Signer.Verify(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID())
	require.Equal(t, sess.ID, claims.SID)

	next, err := svc.Rotate(ctx, pair.RefreshToken, domain.DeviceInfo{IP: "198.51.100.7"})
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The successor belongs to the same session and device chain.
	rt, err := st.RefreshTokens().GetByHash(ctx, cryptox.FingerprintToken(next.RefreshToken))
	require.NoError(t, err)
	require.Equal(t, sess.ID, rt.SessionID)
	require.Equal(t, sess.DeviceID, rt.DeviceID)
}

func TestRotateIsSingleUse(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := createTestUser(t, st, "alice@example.com")
	sess := createTestSession(t, st, user.ID, "sess-1")
	svc := newTestTokenService(t, st)

	pair, err := svc.Issue(ctx, user, IssueInput{
		SessionID: sess.ID, DeviceID: sess.DeviceID, ProviderType: "local", AMR: []string{AMRPassword},
	})
	require.NoError(t, err)

	next, err := svc.Rotate(ctx, pair.RefreshToken, domain.DeviceInfo{})
	require.NoError(t, err)

	// Replaying the consumed token is theft: the whole family dies,
	// including the successor the legitimate rotation just minted.
	_, err = svc.Rotate(ctx, pair.RefreshToken, domain.DeviceInfo{})
	require.ErrorIs(t, err, ErrTokenReuse)

	_, err = svc.Rotate(ctx, next.RefreshToken, domain.DeviceInfo{})
	require.ErrorIs(t, err, ErrTokenReuse)

	// Theft response also ends the user's sessions.
	sessions, err := st.Sessions().ListActiveForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestRotateReuseWritesSecurityAudit(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := createTestUser(t, st, "alice@example.com")
	sess := createTestSession(t, st, user.ID, "sess-1")
	svc := newTestTokenService(t, st)

	pair, err := svc.Issue(ctx, user, IssueInput{
		SessionID: sess.ID, DeviceID: sess.DeviceID, ProviderType: "local", AMR: []string{AMRPassword},
	})
	require.NoError(t, err)

	_, err = svc.Rotate(ctx, pair.RefreshToken, domain.DeviceInfo{})
	require.NoError(t, err)
	_, err = svc.Rotate(ctx, pair.RefreshToken, domain.DeviceInfo{IP: "203.0.113.9"})
	require.ErrorIs(t, err, ErrTokenReuse)

	records, err := st.Audit().ListForUser(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, records)
	require.Equal(t, "refresh_token_reuse_detected", records[0].Action)
	require.Equal(t, domain.ComplianceSecurity, records[0].ComplianceLevel)
}

func TestRotateExpiredToken(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := createTestUser(t, st, "alice@example.com")
	svc := newTestTokenService(t, st)

	opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, st.RefreshTokens().Create(ctx, domain.RefreshToken{
		ID:        idx.NewHandle(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(opaque),
		SessionID: "sess-1",
		ExpiresAt: now.Add(-time.Minute),
		CreatedAt: now.Add(-2 * time.Hour),
	}))

	// Expired is a plain 401-class failure, not theft.
	_, err = svc.Rotate(ctx, opaque, domain.DeviceInfo{})
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestRotateUnknownToken(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestTokenService(t, st)

	_, err := svc.Rotate(ctx, "never-issued", domain.DeviceInfo{})
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestRotateSlidesExpiry(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := createTestUser(t, st, "alice@example.com")
	sess := createTestSession(t, st, user.ID, "sess-1")
	svc := newTestTokenService(t, st)

	pair, err := svc.Issue(ctx, user, IssueInput{
		SessionID: sess.ID, DeviceID: sess.DeviceID, ProviderType: "local", AMR: []string{AMRPassword},
	})
	require.NoError(t, err)

	before := time.Now().UTC()
	next, err := svc.Rotate(ctx, pair.RefreshToken, domain.DeviceInfo{})
	require.NoError(t, err)

	rt, err := st.RefreshTokens().GetByHash(ctx, cryptox.FingerprintToken(next.RefreshToken))
	require.NoError(t, err)

	// The successor's window starts at rotation time, not issuance time.
	require.False(t, rt.ExpiresAt.Before(before.Add(svc.RefreshTTL).Add(-5*time.Second)))
}

func TestRevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := createTestUser(t, st, "alice@example.com")
	sess := createTestSession(t, st, user.ID, "sess-1")
	svc := newTestTokenService(t, st)

	var pairs []*domain.TokenPair
	for range 3 {
		p, err := svc.Issue(ctx, user, IssueInput{
			SessionID: sess.ID, DeviceID: sess.DeviceID, ProviderType: "local", AMR: []string{AMRPassword},
		})
		require.NoError(t, err)
		pairs = append(pairs, p)
	}

	n, err := svc.RevokeAllForUser(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	for _, p := range pairs {
		_, err := svc.Rotate(ctx, p.RefreshToken, domain.DeviceInfo{})
		require.ErrorIs(t, err, ErrTokenReuse)
	}
}

func TestRevokeUnknownTokenIsNoop(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestTokenService(t, st)

	require.NoError(t, svc.Revoke(ctx, "never-issued"))
}
