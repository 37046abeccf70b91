package http

import (
	"net/http"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/internal/identity/service"
	"github.com/clearmind-health/identity/pkg/httpx"
	"github.com/clearmind-health/identity/pkg/slogx"
)

// ComplianceHandler serves consent, audit-trail and data-portability
// endpoints.
type ComplianceHandler struct {
	ComplianceService *service.ComplianceService
	AuditService      *service.AuditService
}

type consentRequest struct {
	ConsentType string `json:"consentType"`
	Granted     bool   `json:"granted"`
}

// HandleRecordConsent handles POST /auth/compliance/consent.
func (h *ComplianceHandler) HandleRecordConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	var req consentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.ConsentType == "" {
		writeInvalidBody(w)
		return
	}

	if err := h.ComplianceService.RecordConsent(ctx, userID, req.ConsentType, req.Granted, deviceInfo(r, domain.DeviceInfo{})); err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "consent recorded"})
}

// HandleListConsents handles GET /auth/compliance/consents.
func (h *ComplianceHandler) HandleListConsents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	consents, err := h.ComplianceService.ListConsents(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"consents": consents})
}

// HandleAuditTrail handles GET /auth/compliance/audit-trail, the caller's
// own security history.
func (h *ComplianceHandler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	records, err := h.AuditService.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"records": records})
}

// HandleRecentAudit handles GET /auth/audit/recent. Admin only.
func (h *ComplianceHandler) HandleRecentAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	records, err := h.AuditService.ListRecent(ctx, limit, offset)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"records": records})
}

// HandleRequestExport handles POST /auth/compliance/data-export-request.
func (h *ComplianceHandler) HandleRequestExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	req, err := h.ComplianceService.RequestExport(ctx, userID, deviceInfo(r, domain.DeviceInfo{}))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, req)
}

// HandleExport handles GET /auth/compliance/export, returning the full data
// bundle inline.
func (h *ComplianceHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	bundle, err := h.ComplianceService.Export(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bundle)
}

// HandleErase handles POST /auth/compliance/erase, the right-to-erasure
// request. The account is deactivated and every credential revoked.
func (h *ComplianceHandler) HandleErase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	if err := h.ComplianceService.Erase(ctx, userID, deviceInfo(r, domain.DeviceInfo{})); err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "account scheduled for erasure"})
}
