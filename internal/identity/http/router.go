package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/clearmind-health/identity/internal/identity/service"
	"github.com/clearmind-health/identity/internal/identity/store"
	"github.com/clearmind-health/identity/pkg/httpx"
	"github.com/clearmind-health/identity/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     httpx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store             store.Store
	AuthService       *service.AuthService
	UserService       *service.UserService
	MFAService        *service.MFAService
	SessionService    *service.SessionService
	RBACService       *service.RBACService
	AuditService      *service.AuditService
	ComplianceService *service.ComplianceService
}

func NewRouter(
	verifier httpx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
	cors httpx.CORSConfig,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.CORS(cors),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerProfile()
	r.registerMFA()
	r.registerSessions()
	r.registerRoles()
	r.registerCompliance()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// secured wraps a handler with token verification and a per-user rate limit.
func (r *Router) secured(h http.HandlerFunc, cfg httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByUser(cfg),
	)
}

// securedAdmin additionally resolves permissions and demands one.
func (r *Router) securedAdmin(h http.HandlerFunc, perm string) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier),
		httpx.AuthzMiddleware(r.RBACService),
		httpx.RequirePermission(perm),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{AuthService: r.AuthService}

	// Credential endpoints are strict-limited by IP. The service layer
	// applies its own DB-backed per-identity windows on top; the middleware
	// is just the transport-level first line.
	r.Mux.Handle("POST /auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister), httpx.RateLimitByIP(httpx.StrictLimit)))
	r.Mux.Handle("POST /auth/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirm), httpx.RateLimitByIP(httpx.StrictLimit)))
	r.Mux.Handle("POST /auth/resend-code",
		httpx.Chain(http.HandlerFunc(h.HandleResendCode), httpx.RateLimitByIP(httpx.StrictLimit)))
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin), httpx.RateLimitByIP(httpx.StrictLimit)))
	r.Mux.Handle("POST /auth/mfa/complete",
		httpx.Chain(http.HandlerFunc(h.HandleMFAComplete), httpx.RateLimitByIP(httpx.StrictLimit)))
	r.Mux.Handle("POST /auth/forgot-password",
		httpx.Chain(http.HandlerFunc(h.HandleForgotPassword), httpx.RateLimitByIP(httpx.StrictLimit)))
	r.Mux.Handle("POST /auth/reset-password",
		httpx.Chain(http.HandlerFunc(h.HandleResetPassword), httpx.RateLimitByIP(httpx.StrictLimit)))

	// Refresh runs hot for healthy clients, moderate limit.
	r.Mux.Handle("POST /auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh), httpx.RateLimitByIP(httpx.ModerateLimit)))

	r.Mux.Handle("POST /auth/logout", r.secured(h.HandleLogout, httpx.ModerateLimit))
	r.Mux.Handle("POST /auth/logout-all", r.secured(h.HandleLogoutAll, httpx.StrictLimit))
}

func (r *Router) registerProfile() {
	h := &ProfileHandler{
		UserService: r.UserService,
		RBACService: r.RBACService,
	}

	r.Mux.Handle("GET /auth/me", r.secured(h.HandleGet, httpx.LenientLimit))
	r.Mux.Handle("PATCH /auth/me", r.secured(h.HandleUpdate, httpx.ModerateLimit))
	r.Mux.Handle("GET /auth/me/providers", r.secured(h.HandleProviders, httpx.LenientLimit))
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFAService: r.MFAService}

	r.Mux.Handle("POST /auth/mfa/setup-totp", r.secured(h.HandleSetupTOTP, httpx.ModerateLimit))
	// Code verification endpoints get the strict profile to slow down
	// guessing; the service-side attempt caps are the hard stop.
	r.Mux.Handle("POST /auth/mfa/verify-totp", r.secured(h.HandleVerifyTOTP, httpx.StrictLimit))
	r.Mux.Handle("POST /auth/mfa/setup-sms", r.secured(h.HandleSetupSMS, httpx.ModerateLimit))
	r.Mux.Handle("POST /auth/mfa/send-sms-code", r.secured(h.HandleSendSMSCode, httpx.StrictLimit))
	r.Mux.Handle("POST /auth/mfa/verify-sms", r.secured(h.HandleVerifySMS, httpx.StrictLimit))
	r.Mux.Handle("POST /auth/mfa/regenerate-backup-codes", r.secured(h.HandleRegenerateBackupCodes, httpx.StrictLimit))
	r.Mux.Handle("POST /auth/mfa/disable", r.secured(h.HandleDisable, httpx.ModerateLimit))
	r.Mux.Handle("GET /auth/mfa/status", r.secured(h.HandleStatus, httpx.LenientLimit))
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{SessionService: r.SessionService}

	r.Mux.Handle("GET /auth/sessions/active", r.secured(h.HandleListActive, httpx.LenientLimit))
	r.Mux.Handle("DELETE /auth/sessions/{id}", r.secured(h.HandleRevoke, httpx.ModerateLimit))
	r.Mux.Handle("POST /auth/sessions/invalidate-all", r.secured(h.HandleInvalidateAll, httpx.StrictLimit))
	r.Mux.Handle("GET /auth/sessions/stats", r.secured(h.HandleStats, httpx.LenientLimit))
	r.Mux.Handle("POST /auth/sessions/trust-device", r.secured(h.HandleTrustDevice, httpx.ModerateLimit))
	r.Mux.Handle("GET /auth/devices", r.secured(h.HandleListDevices, httpx.LenientLimit))
	r.Mux.Handle("DELETE /auth/devices/{id}", r.secured(h.HandleForgetDevice, httpx.ModerateLimit))
}

func (r *Router) registerRoles() {
	h := &RolesHandler{RBACService: r.RBACService}

	r.Mux.Handle("GET /auth/roles", r.securedAdmin(h.HandleList, "roles:read"))
	r.Mux.Handle("GET /auth/users/{id}/roles", r.securedAdmin(h.HandleListForUser, "roles:read"))
	r.Mux.Handle("POST /auth/users/{id}/roles", r.securedAdmin(h.HandleAssign, "roles:write"))
	r.Mux.Handle("DELETE /auth/users/{id}/roles/{role}", r.securedAdmin(h.HandleRemove, "roles:write"))
}

func (r *Router) registerCompliance() {
	h := &ComplianceHandler{
		ComplianceService: r.ComplianceService,
		AuditService:      r.AuditService,
	}

	r.Mux.Handle("POST /auth/compliance/consent", r.secured(h.HandleRecordConsent, httpx.ModerateLimit))
	r.Mux.Handle("GET /auth/compliance/consents", r.secured(h.HandleListConsents, httpx.LenientLimit))
	r.Mux.Handle("GET /auth/compliance/audit-trail", r.secured(h.HandleAuditTrail, httpx.LenientLimit))
	r.Mux.Handle("POST /auth/compliance/data-export-request", r.secured(h.HandleRequestExport, httpx.StrictLimit))
	r.Mux.Handle("GET /auth/compliance/export", r.secured(h.HandleExport, httpx.StrictLimit))
	r.Mux.Handle("POST /auth/compliance/erase", r.secured(h.HandleErase, httpx.StrictLimit))

	r.Mux.Handle("GET /auth/audit/recent", r.securedAdmin(h.HandleRecentAudit, "audit:read"))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
