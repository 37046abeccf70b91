package http

import (
	"net/http"

	"github.com/clearmind-health/identity/internal/identity/service"
	"github.com/clearmind-health/identity/pkg/httpx"
	"github.com/clearmind-health/identity/pkg/slogx"
)

// MFAHandler owns factor enrollment and management. All endpoints require an
// authenticated caller; the login-time verification leg lives on AuthHandler.
type MFAHandler struct {
	MFAService *service.MFAService
}

// HandleSetupTOTP handles POST /auth/mfa/setup-totp.
func (h *MFAHandler) HandleSetupTOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	enroll, err := h.MFAService.SetupTOTP(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, enroll)
}

type codeRequest struct {
	Code string `json:"code"`
}

type backupCodesResponse struct {
	BackupCodes []string `json:"backupCodes,omitempty"`
	Message     string   `json:"message"`
}

// HandleVerifyTOTP handles POST /auth/mfa/verify-totp. The first successful
// verification enables the factor and returns the one-time backup codes.
func (h *MFAHandler) HandleVerifyTOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	var req codeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Code == "" {
		writeInvalidBody(w)
		return
	}

	backupCodes, err := h.MFAService.VerifyTOTP(ctx, userID, req.Code)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, backupCodesResponse{
		BackupCodes: backupCodes,
		Message:     "TOTP enabled. Store the backup codes somewhere safe, they are shown once.",
	})
}

type setupSMSRequest struct {
	Phone string `json:"phone"`
}

// HandleSetupSMS handles POST /auth/mfa/setup-sms.
func (h *MFAHandler) HandleSetupSMS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	var req setupSMSRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Phone == "" {
		writeInvalidBody(w)
		return
	}

	if err := h.MFAService.SetupSMS(ctx, userID, req.Phone); err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "verification code sent"})
}

// HandleSendSMSCode handles POST /auth/mfa/send-sms-code. Each send
// invalidates the previous unconsumed code.
func (h *MFAHandler) HandleSendSMSCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	if err := h.MFAService.SendSMSCode(ctx, userID); err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "code sent"})
}

// HandleVerifySMS handles POST /auth/mfa/verify-sms. Like TOTP, the first
// successful verification enables the factor.
func (h *MFAHandler) HandleVerifySMS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	var req codeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Code == "" {
		writeInvalidBody(w)
		return
	}

	if err := h.MFAService.VerifySMS(ctx, userID, req.Code); err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "SMS factor enabled"})
}

// HandleRegenerateBackupCodes handles POST /auth/mfa/regenerate-backup-codes.
func (h *MFAHandler) HandleRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	backupCodes, err := h.MFAService.RegenerateBackupCodes(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, backupCodesResponse{
		BackupCodes: backupCodes,
		Message:     "previous backup codes are no longer valid",
	})
}

// HandleDisable handles POST /auth/mfa/disable.
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	if err := h.MFAService.Disable(ctx, userID); err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "MFA disabled"})
}

// HandleStatus handles GET /auth/mfa/status.
func (h *MFAHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	status, err := h.MFAService.Status(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, status)
}
