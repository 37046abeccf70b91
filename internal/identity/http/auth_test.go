package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clearmind-health/identity/internal/identity/notify"
	"github.com/clearmind-health/identity/internal/identity/provider"
	"github.com/clearmind-health/identity/internal/identity/provider/local"
	"github.com/clearmind-health/identity/internal/identity/provider/resolve"
	"github.com/clearmind-health/identity/internal/identity/service"
	"github.com/clearmind-health/identity/internal/identity/store/drivers/sqlite"
	"github.com/clearmind-health/identity/pkg/cryptox"
	"github.com/clearmind-health/identity/pkg/httpx"
	"github.com/clearmind-health/identity/pkg/jwtx"
)

const testPassword = "Sup3rSecret"

type recordingSender struct {
	emails []string
}

func (s *recordingSender) SendEmail(_ context.Context, _, _, body string) error {
	s.emails = append(s.emails, body)
	return nil
}

func (s *recordingSender) SendSMS(context.Context, string, string) error { return nil }

var _ notify.Sender = (*recordingSender)(nil)

func newTestAuthHandler(t *testing.T) (*AuthHandler, *recordingSender) {
	t.Helper()

	cryptox.SetPepperPath(filepath.Join(t.TempDir(), "pepper"))

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	signer, err := jwtx.NewSigner([]byte("0123456789abcdef0123456789abcdef"), "test-issuer")
	require.NoError(t, err)

	sender := &recordingSender{}
	svc := &service.AuthService{
		Resolver: resolve.New(provider.TypeLocal, local.New(st, signer, sender, time.Minute)),
		Users:    &service.UserService{Store: st},
		Tokens: &service.TokenService{
			Signer:        signer,
			Store:         st,
			AccessTTL:     time.Minute,
			RefreshTTL:    time.Hour,
			RememberMeTTL: 24 * time.Hour,
		},
		Lockouts:          service.NewLockoutService(st),
		MFA:               &service.MFAService{Store: st, Sender: sender, Issuer: "ClearMind"},
		Audit:             &service.AuditService{Store: st},
		Store:             st,
		PasswordMinLength: 8,
	}
	return &AuthHandler{AuthService: svc}, sender
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()

	buf, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

// registerAndConfirm runs the registration leg over the handlers, pulling the
// confirmation code out of the recorded email.
func registerAndConfirm(t *testing.T, h *AuthHandler, sender *recordingSender, email string) {
	t.Helper()

	rec := postJSON(t, h.HandleRegister, map[string]string{
		"email":    email,
		"password": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NotEmpty(t, sender.emails)
	body := sender.emails[len(sender.emails)-1]
	code := body[len(body)-6:]

	rec = postJSON(t, h.HandleConfirm, map[string]string{
		"email": email,
		"code":  code,
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterConfirmLoginOverHTTP(t *testing.T) {
	h, sender := newTestAuthHandler(t)

	rec := postJSON(t, h.HandleRegister, map[string]string{
		"email":     "alice@example.com",
		"password":  testPassword,
		"firstName": "Alice",
		"lastName":  "Smith",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var reg registerResponse
	decodeBody(t, rec, &reg)
	require.NotEmpty(t, reg.UID)
	require.True(t, reg.RequiresVerification)

	body := sender.emails[len(sender.emails)-1]
	rec = postJSON(t, h.HandleConfirm, map[string]string{
		"email": "alice@example.com",
		"code":  body[len(body)-6:],
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, h.HandleLogin, map[string]string{
		"email":    "alice@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var login struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
		Tokens struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		} `json:"tokens"`
	}
	decodeBody(t, rec, &login)
	require.Equal(t, "alice@example.com", login.User.Email)
	require.NotEmpty(t, login.Tokens.AccessToken)
	require.NotEmpty(t, login.Tokens.RefreshToken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h, sender := newTestAuthHandler(t)
	registerAndConfirm(t, h, sender, "bob@example.com")

	rec := postJSON(t, h.HandleLogin, map[string]string{
		"email":    "bob@example.com",
		"password": "Wr0ngPassword",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body httpx.ErrorBody
	decodeBody(t, rec, &body)
	require.Equal(t, "invalid_credentials", body.Error)
}

func TestLoginLockedAccountGets423(t *testing.T) {
	h, sender := newTestAuthHandler(t)
	registerAndConfirm(t, h, sender, "carol@example.com")

	var rec *httptest.ResponseRecorder
	for range 5 {
		rec = postJSON(t, h.HandleLogin, map[string]string{
			"email":    "carol@example.com",
			"password": "Wr0ngPassword",
		})
	}
	require.Equal(t, http.StatusLocked, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body httpx.ErrorBody
	decodeBody(t, rec, &body)
	require.Equal(t, "account_locked", body.Error)
	require.Positive(t, body.RetryAfter)
}

func TestRefreshReplayGets403(t *testing.T) {
	h, sender := newTestAuthHandler(t)
	registerAndConfirm(t, h, sender, "dave@example.com")

	rec := postJSON(t, h.HandleLogin, map[string]string{
		"email":    "dave@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var login struct {
		Tokens struct {
			RefreshToken string `json:"refreshToken"`
		} `json:"tokens"`
	}
	decodeBody(t, rec, &login)

	rec = postJSON(t, h.HandleRefresh, map[string]string{
		"refreshToken": login.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Replaying the consumed token is treated as theft.
	rec = postJSON(t, h.HandleRefresh, map[string]string{
		"refreshToken": login.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body httpx.ErrorBody
	decodeBody(t, rec, &body)
	require.Equal(t, "token_reuse_detected", body.Error)
}

func TestLoginMissingBody(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	rec := postJSON(t, h.HandleLogin, map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterWeakPasswordGets400(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	rec := postJSON(t, h.HandleRegister, map[string]string{
		"email":    "weak@example.com",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body httpx.ErrorBody
	decodeBody(t, rec, &body)
	require.Equal(t, "weak_password", body.Error)
}
