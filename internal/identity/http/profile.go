package http

import (
	"net/http"

	"github.com/clearmind-health/identity/internal/identity/service"
	"github.com/clearmind-health/identity/pkg/httpx"
	"github.com/clearmind-health/identity/pkg/slogx"
)

// ProfileHandler serves the authenticated user's own record.
type ProfileHandler struct {
	UserService *service.UserService
	RBACService *service.RBACService
}

// HandleGet handles GET /auth/me.
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	user, err := h.UserService.GetByID(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	perms, err := h.RBACService.PermissionsFor(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"user":        toUserView(user),
		"permissions": perms,
	})
}

type updateProfileRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// HandleUpdate handles PATCH /auth/me.
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	var req updateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	if err := h.UserService.UpdateProfile(ctx, userID, req.FirstName, req.LastName); err != nil {
		writeServiceError(w, log, err)
		return
	}
	user, err := h.UserService.GetByID(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserView(user))
}

// HandleProviders handles GET /auth/me/providers, listing the identity
// providers linked to the caller's account.
func (h *ProfileHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	mappings, err := h.UserService.Providers(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	views := make([]providerView, 0, len(mappings))
	for _, m := range mappings {
		views = append(views, toProviderView(m))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"providers": views})
}
