package http

import (
	"net/http"
	"strconv"

	"github.com/clearmind-health/identity/internal/identity/service"
	"github.com/clearmind-health/identity/pkg/httpx"
	"github.com/clearmind-health/identity/pkg/slogx"
)

// RolesHandler serves role administration. Routes are gated behind the
// admin permission set.
type RolesHandler struct {
	RBACService *service.RBACService
}

// HandleList handles GET /auth/roles.
func (h *RolesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	roles, err := h.RBACService.ListRoles(ctx)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	views := make([]roleView, 0, len(roles))
	for _, role := range roles {
		views = append(views, toRoleView(role))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"roles": views})
}

// HandleListForUser handles GET /auth/users/{id}/roles.
func (h *RolesHandler) HandleListForUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "user id must be numeric")
		return
	}

	roles, err := h.RBACService.RolesFor(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	perms, err := h.RBACService.PermissionsFor(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	views := make([]roleView, 0, len(roles))
	for _, role := range roles {
		views = append(views, toRoleView(role))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"roles":       views,
		"permissions": perms,
	})
}

type assignRoleRequest struct {
	Role string `json:"role"`
}

// HandleAssign handles POST /auth/users/{id}/roles.
func (h *RolesHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "user id must be numeric")
		return
	}

	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Role == "" {
		writeInvalidBody(w)
		return
	}

	if err := h.RBACService.Assign(ctx, userID, req.Role); err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "role assigned"})
}

// HandleRemove handles DELETE /auth/users/{id}/roles/{role}.
func (h *RolesHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "user id must be numeric")
		return
	}
	roleName := r.PathValue("role")
	if roleName == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "role name is required")
		return
	}

	if err := h.RBACService.Remove(ctx, userID, roleName); err != nil {
		writeServiceError(w, log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "role removed"})
}
