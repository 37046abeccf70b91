package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/internal/identity/store"
)

func newTestSessionService(st store.Store) *SessionService {
	return &SessionService{
		Store: st,
		Audit: &AuditService{Store: st},
	}
}

func createTestDevice(t *testing.T, st store.Store, userID int64, deviceID string) {
	t.Helper()

	now := time.Now().UTC()
	require.NoError(t, st.Devices().Upsert(context.Background(), domain.DeviceFingerprint{
		UserID:          userID,
		DeviceID:        deviceID,
		FingerprintHash: "fp-" + deviceID,
		FirstSeen:       now,
		LastSeen:        now,
	}))
}

func TestRevokeSessionEndsRefreshChain(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestSessionService(st)
	tokens := newTestTokenService(t, st)
	user := createTestUser(t, st, "sessions@example.com")
	sess := createTestSession(t, st, user.ID, "sess-1")

	pair, err := tokens.Issue(ctx, user, IssueInput{
		SessionID:    sess.ID,
		DeviceID:     sess.DeviceID,
		ProviderType: "local",
		AMR:          []string{AMRPassword},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, user.ID, sess.ID, domain.DeviceInfo{}))

	active, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, active)

	_, err = tokens.Rotate(ctx, pair.RefreshToken, domain.DeviceInfo{})
	require.Error(t, err)
}

func TestRevokeRejectsForeignSession(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestSessionService(st)
	owner := createTestUser(t, st, "owner@example.com")
	other := createTestUser(t, st, "other@example.com")
	sess := createTestSession(t, st, owner.ID, "sess-owner")

	err := svc.Revoke(ctx, other.ID, sess.ID, domain.DeviceInfo{})
	require.ErrorIs(t, err, ErrNotFound)

	// The owner's session is untouched.
	active, err := svc.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestRevokeUnknownSession(t *testing.T) {
	st := newTestStore(t)
	svc := newTestSessionService(st)
	user := createTestUser(t, st, "nosess@example.com")

	err := svc.Revoke(context.Background(), user.ID, "missing", domain.DeviceInfo{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeOthersKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestSessionService(st)
	user := createTestUser(t, st, "multi@example.com")
	current := createTestSession(t, st, user.ID, "sess-current")
	createTestSession(t, st, user.ID, "sess-a")
	createTestSession(t, st, user.ID, "sess-b")

	ended, err := svc.RevokeOthers(ctx, user.ID, current.ID, domain.DeviceInfo{})
	require.NoError(t, err)
	require.EqualValues(t, 2, ended)

	active, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, current.ID, active[0].ID)
}

func TestSessionStats(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestSessionService(st)
	user := createTestUser(t, st, "stats@example.com")
	createTestSession(t, st, user.ID, "sess-1")
	createTestSession(t, st, user.ID, "sess-2")

	stats, err := svc.Stats(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stats.ActiveSessions)
}

func TestTrustAndForgetDevice(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestSessionService(st)
	user := createTestUser(t, st, "devices@example.com")
	createTestDevice(t, st, user.ID, "dev-1")

	require.NoError(t, svc.TrustDevice(ctx, user.ID, "dev-1", true))

	devices, err := svc.Devices(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.True(t, devices[0].IsTrusted)

	require.NoError(t, svc.ForgetDevice(ctx, user.ID, "dev-1", domain.DeviceInfo{}))

	devices, err = svc.Devices(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, devices)
}

func TestForgetDeviceEndsItsSessions(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestSessionService(st)
	user := createTestUser(t, st, "forget@example.com")
	sess := createTestSession(t, st, user.ID, "sess-1")
	keep := createTestSession(t, st, user.ID, "sess-2")
	createTestDevice(t, st, user.ID, sess.DeviceID)

	require.NoError(t, svc.ForgetDevice(ctx, user.ID, sess.DeviceID, domain.DeviceInfo{}))

	active, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, keep.ID, active[0].ID)
}

func TestTrustUnknownDevice(t *testing.T) {
	st := newTestStore(t)
	svc := newTestSessionService(st)
	user := createTestUser(t, st, "nodev@example.com")

	err := svc.TrustDevice(context.Background(), user.ID, "missing", true)
	require.ErrorIs(t, err, ErrNotFound)
}
