package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/clearmind-health/identity/internal/identity/service"
	"github.com/clearmind-health/identity/pkg/httpx"
)

// writeServiceError maps service-layer errors to the wire convention:
// 401 bad credentials or token, 403 theft or unconfirmed account, 409
// duplicate identity, 423 locked, 429 rate limited, 502 provider down,
// everything else 500.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	var locked *service.LockedError
	var limited *service.RateLimitedError

	switch {
	case errors.As(err, &locked):
		httpx.WriteRetryAfter(w, http.StatusLocked,
			"account_locked", "Account is temporarily locked", locked.RetryAfter())
	case errors.As(err, &limited):
		httpx.WriteRetryAfter(w, http.StatusTooManyRequests,
			"rate_limited", "Too many requests", limited.RetryAfter)
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_credentials", "Invalid email or password")
	case errors.Is(err, service.ErrInvalidRefresh):
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_token", "Refresh token is invalid or expired")
	case errors.Is(err, service.ErrTokenReuse):
		httpx.WriteError(w, http.StatusForbidden,
			"token_reuse_detected", "All sessions have been terminated, sign in again")
	case errors.Is(err, service.ErrNotConfirmed):
		httpx.WriteError(w, http.StatusForbidden,
			"account_not_confirmed", "Account requires verification")
	case errors.Is(err, service.ErrAccountNotActive):
		httpx.WriteError(w, http.StatusForbidden,
			"account_not_active", "Account is not active")
	case errors.Is(err, service.ErrAlreadyExists):
		httpx.WriteError(w, http.StatusConflict,
			"already_exists", "An account with this email already exists")
	case errors.Is(err, service.ErrInvalidCode):
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_code", "The supplied code is invalid or expired")
	case errors.Is(err, service.ErrTooManyAttempts):
		httpx.WriteError(w, http.StatusTooManyRequests,
			"too_many_attempts", "Too many failed attempts")
	case errors.Is(err, service.ErrWeakPassword):
		httpx.WriteError(w, http.StatusBadRequest,
			"weak_password", "Password does not meet the complexity requirements")
	case errors.Is(err, service.ErrMFANotEnabled):
		httpx.WriteError(w, http.StatusBadRequest,
			"mfa_not_enabled", "MFA is not enabled for this account")
	case errors.Is(err, service.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound,
			"not_found", "The requested resource does not exist")
	case errors.Is(err, service.ErrProviderDown):
		httpx.WriteError(w, http.StatusBadGateway,
			"provider_unavailable", "The identity provider is unavailable, try again later")
	default:
		log.Error("unhandled service error", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Internal server error")
	}
}

func writeInvalidBody(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
}
