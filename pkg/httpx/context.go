package httpx

import "context"

type ctxKey string

const (
	CtxKeyUserID      ctxKey = "user_id"
	CtxKeyRole        ctxKey = "role"
	CtxKeySessionID   ctxKey = "session_id"
	CtxKeyPermissions ctxKey = "permissions"
)

// UserIDFromCtx returns the authenticated user's ID, or 0.
func UserIDFromCtx(ctx context.Context) int64 {
	if v, ok := ctx.Value(CtxKeyUserID).(int64); ok {
		return v
	}
	return 0
}

// RoleFromCtx returns the authenticated user's primary role, or "".
func RoleFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyRole).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromCtx returns the caller's session ID, or "".
func SessionIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeySessionID).(string); ok {
		return v
	}
	return ""
}

func permissionsFromCtx(ctx context.Context) []string {
	if v, ok := ctx.Value(CtxKeyPermissions).([]string); ok {
		return v
	}
	return nil
}
