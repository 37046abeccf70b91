package http

import (
	"net/http"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/internal/identity/service"
	"github.com/clearmind-health/identity/pkg/httpx"
	"github.com/clearmind-health/identity/pkg/slogx"
)

// SessionsHandler serves session and device lifecycle endpoints.
type SessionsHandler struct {
	SessionService *service.SessionService
}

// HandleListActive handles GET /auth/sessions/active. The caller's own
// session is flagged; ?excludeCurrent=true drops it entirely.
func (h *SessionsHandler) HandleListActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)
	currentID := httpx.SessionIDFromCtx(ctx)

	sessions, err := h.SessionService.List(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	excludeCurrent := r.URL.Query().Get("excludeCurrent") == "true"
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		if excludeCurrent && s.ID == currentID {
			continue
		}
		views = append(views, toSessionView(s, currentID))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

// HandleRevoke handles DELETE /auth/sessions/{id}.
func (h *SessionsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	sessionID := r.PathValue("id")
	if sessionID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "session id is required")
		return
	}

	if err := h.SessionService.Revoke(ctx, userID, sessionID, deviceInfo(r, domain.DeviceInfo{})); err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "session revoked"})
}

// HandleInvalidateAll handles POST /auth/sessions/invalidate-all, ending
// every session except the caller's current one.
func (h *SessionsHandler) HandleInvalidateAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)
	currentID := httpx.SessionIDFromCtx(ctx)

	n, err := h.SessionService.RevokeOthers(ctx, userID, currentID, deviceInfo(r, domain.DeviceInfo{}))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message":         "other sessions invalidated",
		"sessionsRevoked": n,
	})
}

// HandleStats handles GET /auth/sessions/stats.
func (h *SessionsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	stats, err := h.SessionService.Stats(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

// HandleListDevices handles GET /auth/devices.
func (h *SessionsHandler) HandleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	devices, err := h.SessionService.Devices(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, toDeviceView(d))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"devices": views})
}

type trustDeviceRequest struct {
	DeviceID string `json:"deviceId"`
	Trusted  bool   `json:"trusted"`
}

// HandleTrustDevice handles POST /auth/sessions/trust-device.
func (h *SessionsHandler) HandleTrustDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	var req trustDeviceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.DeviceID == "" {
		writeInvalidBody(w)
		return
	}

	if err := h.SessionService.TrustDevice(ctx, userID, req.DeviceID, req.Trusted); err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "device trust updated"})
}

// HandleForgetDevice handles DELETE /auth/devices/{id}. The device's
// fingerprint, sessions and token chains are all removed.
func (h *SessionsHandler) HandleForgetDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	deviceID := r.PathValue("id")
	if deviceID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "device id is required")
		return
	}

	if err := h.SessionService.ForgetDevice(ctx, userID, deviceID, deviceInfo(r, domain.DeviceInfo{})); err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "device forgotten"})
}
