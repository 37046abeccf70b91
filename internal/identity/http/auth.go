package http

import (
	"net/http"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/internal/identity/provider"
	"github.com/clearmind-health/identity/internal/identity/service"
	"github.com/clearmind-health/identity/pkg/httpx"
	"github.com/clearmind-health/identity/pkg/slogx"
)

// AuthHandler owns the credential endpoints: registration, confirmation,
// login, MFA completion, refresh and logout.
type AuthHandler struct {
	AuthService *service.AuthService
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role,omitempty"`

	Device domain.DeviceInfo `json:"deviceInfo,omitempty"`
}

type registerResponse struct {
	UID                  string `json:"uid"`
	RequiresVerification bool   `json:"requiresVerification"`
}

// HandleRegister handles POST /auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	res, err := h.AuthService.Register(ctx, service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		Device:    deviceInfo(r, req.Device),
	})
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, registerResponse{
		UID:                  res.UID,
		RequiresVerification: !res.Confirmed,
	})
}

type confirmRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// HandleConfirm handles POST /auth/confirm.
func (h *AuthHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req confirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.Email == "" || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and code are required")
		return
	}

	if err := h.AuthService.ConfirmRegistration(ctx, req.Email, req.Code, deviceInfo(r, domain.DeviceInfo{})); err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "account confirmed"})
}

type emailRequest struct {
	Email string `json:"email"`
}

// HandleResendCode handles POST /auth/resend-code.
func (h *AuthHandler) HandleResendCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req emailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Email == "" {
		writeInvalidBody(w)
		return
	}

	if err := h.AuthService.ResendCode(ctx, req.Email, deviceInfo(r, domain.DeviceInfo{})); err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "confirmation code sent"})
}

// HandleForgotPassword handles POST /auth/forgot-password. The response is
// identical whether or not the account exists.
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req emailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Email == "" {
		writeInvalidBody(w)
		return
	}

	if err := h.AuthService.ForgotPassword(ctx, req.Email, deviceInfo(r, domain.DeviceInfo{})); err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "if an account exists for this email, a reset code has been sent",
	})
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

// HandleResetPassword handles POST /auth/reset-password.
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req resetPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.Email == "" || req.Code == "" || req.NewPassword == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email, code and newPassword are required")
		return
	}

	if err := h.AuthService.ResetPassword(ctx, req.Email, req.Code, req.NewPassword, deviceInfo(r, domain.DeviceInfo{})); err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "password reset, sign in again"})
}

type loginRequest struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`

	// IDToken logs in with a provider-issued token instead of credentials.
	IDToken string `json:"idToken,omitempty"`

	// Provider optionally pins the identity provider ("userpool", "local").
	Provider string `json:"provider,omitempty"`

	RememberMe bool              `json:"rememberMe,omitempty"`
	Device     domain.DeviceInfo `json:"deviceInfo,omitempty"`
}

type loginResponse struct {
	User   userView          `json:"user"`
	Tokens *domain.TokenPair `json:"tokens"`
}

// HandleLogin handles POST /auth/login. The response is either a token pair
// or a pending MFA challenge with requiresMFA set.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	var (
		res *service.LoginResult
		err error
	)
	switch {
	case req.IDToken != "":
		res, err = h.AuthService.LoginWithToken(ctx, req.IDToken, deviceInfo(r, req.Device), req.RememberMe)
	case req.Email != "" && req.Password != "":
		res, err = h.AuthService.Login(ctx, service.LoginInput{
			Email:      req.Email,
			Password:   req.Password,
			Provider:   provider.Type(req.Provider),
			RememberMe: req.RememberMe,
			Device:     deviceInfo(r, req.Device),
		})
	default:
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "either idToken or email and password are required")
		return
	}
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	if res.Challenge != nil {
		// First factor passed, second factor pending. No tokens yet.
		httpx.WriteJSON(w, http.StatusOK, res.Challenge)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		User:   toUserView(res.User),
		Tokens: res.Tokens,
	})
}

type mfaCompleteRequest struct {
	MFAToken string `json:"mfaToken"`
	Method   string `json:"method"`
	Code     string `json:"code"`

	Device domain.DeviceInfo `json:"deviceInfo,omitempty"`
}

// HandleMFAComplete handles POST /auth/mfa/complete, the second leg of an
// MFA-gated login.
func (h *AuthHandler) HandleMFAComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req mfaCompleteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.MFAToken == "" || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "mfaToken and code are required")
		return
	}

	res, err := h.AuthService.CompleteMFALogin(ctx, req.MFAToken, req.Method, req.Code, deviceInfo(r, req.Device))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		User:   toUserView(res.User),
		Tokens: res.Tokens,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`

	Device domain.DeviceInfo `json:"deviceInfo,omitempty"`
}

// HandleRefresh handles POST /auth/refresh.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeInvalidBody(w)
		return
	}

	pair, err := h.AuthService.Refresh(ctx, req.RefreshToken, deviceInfo(r, req.Device))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

// HandleLogout handles POST /auth/logout. Requires an access token; the
// refresh token in the body is revoked alongside the caller's session.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)
	sessionID := httpx.SessionIDFromCtx(ctx)

	var req logoutRequest
	_ = httpx.DecodeJSON(r, &req) // body is optional

	if err := h.AuthService.Logout(ctx, userID, sessionID, req.RefreshToken, deviceInfo(r, domain.DeviceInfo{})); err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleLogoutAll handles POST /auth/logout-all. Every session and refresh
// token the user holds is invalidated.
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	n, err := h.AuthService.LogoutAll(ctx, userID, deviceInfo(r, domain.DeviceInfo{}))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message":         "logged out everywhere",
		"sessionsRevoked": n,
	})
}
