package httpx

import (
	"context"
	"net/http"
	"slices"
)

// PermissionResolver maps an authenticated user to the permissions
// granted by their roles.
type PermissionResolver interface {
	PermissionsFor(ctx context.Context, userID int64) ([]string, error)
}

// AuthzMiddleware resolves the caller's permission set once per request
// and stashes it in the context for RequirePermission checks.
func AuthzMiddleware(resolver PermissionResolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			userID := UserIDFromCtx(ctx)
			if userID == 0 {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}

			perms, err := resolver.PermissionsFor(ctx, userID)
			if err != nil {
				WriteError(w, http.StatusInternalServerError, "server_error", "failed to resolve permissions")
				return
			}

			ctx = context.WithValue(ctx, CtxKeyPermissions, perms)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission gates a handler on a single permission. Wildcard
// "*" grants everything.
func RequirePermission(perm string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			perms := permissionsFromCtx(r.Context())
			if !hasPermission(perms, perm) {
				WriteError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole gates a handler on the caller's role claim.
func RequireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromCtx(r.Context())
			if !slices.Contains(roles, role) {
				WriteError(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasPermission(perms []string, want string) bool {
	for _, p := range perms {
		if p == "*" || p == want {
			return true
		}
	}
	return false
}
