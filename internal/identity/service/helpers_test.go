package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/internal/identity/store"
	"github.com/clearmind-health/identity/internal/identity/store/drivers/sqlite"
	"github.com/clearmind-health/identity/pkg/idx"
	"github.com/clearmind-health/identity/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func newTestSigner(t *testing.T) *jwtx.Signer {
	t.Helper()

	signer, err := jwtx.NewSigner([]byte("0123456789abcdef0123456789abcdef"), "test-issuer")
	require.NoError(t, err)
	return signer
}

func createTestUser(t *testing.T, st store.Store, email string) domain.User {
	t.Helper()

	now := time.Now().UTC()
	u := domain.User{
		ID:                  idx.NewID(),
		Email:               email,
		FirstName:           "Test",
		LastName:            "User",
		Role:                "client",
		Status:              domain.StatusActive,
		CurrentAuthProvider: "local",
		EmailVerified:       true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, st.Users().Create(context.Background(), u))
	return u
}

func newTestTokenService(t *testing.T, st store.Store) *TokenService {
	t.Helper()

	return &TokenService{
		Signer:        newTestSigner(t),
		Store:         st,
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		RememberMeTTL: 24 * time.Hour,
	}
}

// captureSender records deliveries so tests can read back the codes that
// would have gone out of band.
type captureSender struct {
	emails []string
	sms    []string
}

func (c *captureSender) SendEmail(_ context.Context, _, _, body string) error {
	c.emails = append(c.emails, body)
	return nil
}

func (c *captureSender) SendSMS(_ context.Context, _, body string) error {
	c.sms = append(c.sms, body)
	return nil
}

// lastCode pulls the trailing digits out of the most recent message.
func lastCode(t *testing.T, messages []string) string {
	t.Helper()

	require.NotEmpty(t, messages)
	body := messages[len(messages)-1]
	i := strings.LastIndex(body, " ")
	require.Greater(t, i, -1)
	return strings.TrimSuffix(body[i+1:], ".")
}

func createTestSession(t *testing.T, st store.Store, userID int64, id string) domain.Session {
	t.Helper()

	now := time.Now().UTC()
	s := domain.Session{
		ID:           id,
		UserID:       userID,
		DeviceID:     "device-" + id,
		IP:           "198.51.100.7",
		UserAgent:    "test-agent",
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(time.Hour),
		IsActive:     true,
	}
	require.NoError(t, st.Sessions().Create(context.Background(), s))
	return s
}
