package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/internal/identity/provider"
	"github.com/clearmind-health/identity/internal/identity/provider/resolve"
	"github.com/clearmind-health/identity/internal/identity/store"
	"github.com/clearmind-health/identity/pkg/idx"
	"github.com/clearmind-health/identity/pkg/slogx"
)

// Rate policies per action class. Stored-counter limits, independent of the
// per-route transport limiter.
var (
	LoginRatePolicy    = RatePolicy{Limit: 10, Window: time.Minute}
	RegisterRatePolicy = RatePolicy{Limit: 5, Window: time.Minute}
	CodeRatePolicy     = RatePolicy{Limit: 5, Window: time.Minute}
	ForgotRatePolicy   = RatePolicy{Limit: 3, Window: time.Minute}
)

type AuthService struct {
	Resolver *resolve.Resolver
	Users    *UserService
	Tokens   *TokenService
	Lockouts *LockoutService
	MFA      *MFAService
	Audit    *AuditService
	Store    store.Store

	// PasswordMinLength gates registration and resets. Complexity rules
	// (upper, lower, digit) always apply.
	PasswordMinLength int
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	Device    domain.DeviceInfo
}

type RegisterResult struct {
	UID       string `json:"uid"`
	Confirmed bool   `json:"confirmed"`
}

// Register creates a principal at the primary provider and provisions the
// matching user row. Unconfirmed principals start in pending_verification;
// confirmation flips them active.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	email := normalizeEmail(in.Email)

	if err := s.Lockouts.CheckRate(ctx, email, "register", in.Device.IP, RegisterRatePolicy); err != nil {
		return nil, err
	}
	if err := s.validatePassword(in.Password); err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = defaultRole
	}

	uid, confirmed, err := s.Resolver.Primary().SignUp(ctx, provider.SignUpInput{
		Email:    email,
		Password: in.Password,
		Attributes: map[string]string{
			"given_name":  in.FirstName,
			"family_name": in.LastName,
			"custom:role": role,
		},
	})
	if err != nil {
		return nil, mapProviderErr(err)
	}

	if _, err := s.Users.Reconcile(ctx, provider.Principal{
		UID:           uid,
		Email:         email,
		Name:          strings.TrimSpace(in.FirstName + " " + in.LastName),
		RoleHint:      role,
		EmailVerified: confirmed,
	}, s.Resolver.PrimaryType()); err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, Event{
		Action:   "user_registered",
		Resource: "users",
		NewValues: map[string]string{
			"email":    email,
			"provider": string(s.Resolver.PrimaryType()),
		},
		Device: in.Device,
	})

	return &RegisterResult{UID: uid, Confirmed: confirmed}, nil
}

// ConfirmRegistration redeems an emailed confirmation code at the primary
// provider and, when the user already exists locally, flips them active.
func (s *AuthService) ConfirmRegistration(ctx context.Context, email, code string, d domain.DeviceInfo) error {
	email = normalizeEmail(email)

	if err := s.Lockouts.CheckRate(ctx, email, "confirm", d.IP, CodeRatePolicy); err != nil {
		return err
	}
	if err := s.Resolver.Primary().ConfirmSignUp(ctx, email, code); err != nil {
		return mapProviderErr(err)
	}

	if user, err := s.Store.Users().GetByEmail(ctx, email); err == nil {
		if !user.EmailVerified {
			_ = s.Store.Users().SetEmailVerified(ctx, user.ID, true)
		}
		if user.Status == domain.StatusPendingVerification {
			_ = s.Store.Users().UpdateStatus(ctx, user.ID, domain.StatusActive)
		}
	}
	return nil
}

func (s *AuthService) ResendCode(ctx context.Context, email string, d domain.DeviceInfo) error {
	email = normalizeEmail(email)
	if err := s.Lockouts.CheckRate(ctx, email, "resend_code", d.IP, CodeRatePolicy); err != nil {
		return err
	}
	if err := s.Resolver.Primary().ResendCode(ctx, email); err != nil {
		return mapProviderErr(err)
	}
	return nil
}

// ForgotPassword always behaves identically whether or not the email
// exists, so the endpoint cannot be used for enumeration.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, d domain.DeviceInfo) error {
	email = normalizeEmail(email)
	if err := s.Lockouts.CheckRate(ctx, email, "forgot_password", d.IP, ForgotRatePolicy); err != nil {
		return err
	}

	if err := s.Resolver.Primary().ForgotPassword(ctx, email); err != nil {
		if provider.IsCode(err, provider.CodeNotFound) {
			return nil
		}
		return mapProviderErr(err)
	}
	return nil
}

// ResetPassword completes a password reset and burns every credential the
// user held; a reset after suspected compromise must not leave stolen
// refresh tokens alive.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string, d domain.DeviceInfo) error {
	email = normalizeEmail(email)

	if err := s.Lockouts.CheckRate(ctx, email, "reset_password", d.IP, CodeRatePolicy); err != nil {
		return err
	}
	if err := s.validatePassword(newPassword); err != nil {
		return err
	}
	if err := s.Resolver.Primary().ConfirmForgotPassword(ctx, email, code, newPassword); err != nil {
		return mapProviderErr(err)
	}

	if user, err := s.Store.Users().GetByEmail(ctx, email); err == nil {
		now := time.Now().UTC()
		_, _ = s.Store.RefreshTokens().RevokeAllForUser(ctx, user.ID, now)
		_, _ = s.Store.Sessions().DeactivateAllForUser(ctx, user.ID, "")
		_ = s.Lockouts.Unlock(ctx, email)

		s.Audit.Record(ctx, Event{
			UserID:   &user.ID,
			Action:   "password_reset",
			Resource: "users",
			Level:    domain.ComplianceSecurity,
			Device:   d,
		})
	}
	return nil
}

type LoginInput struct {
	Email      string
	Password   string
	Provider   provider.Type // optional explicit tag, preferred over sniffing
	RememberMe bool
	Device     domain.DeviceInfo
}

// LoginResult is either a full token pair or a pending MFA challenge,
// never both.
type LoginResult struct {
	Tokens    *domain.TokenPair
	Challenge *domain.MFAChallengeResponse
	User      domain.User
}

// Login runs the full password flow: rate and lockout gates, provider
// resolution with fallback, principal reconciliation, then either a token
// pair or an MFA challenge.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := normalizeEmail(in.Email)
	l := slogx.FromContext(ctx)

	if err := s.Lockouts.CheckRate(ctx, email, "login", in.Device.IP, LoginRatePolicy); err != nil {
		return nil, err
	}
	if err := s.Lockouts.Check(ctx, email); err != nil {
		return nil, err
	}

	principal, ptype, err := s.signIn(ctx, email, in.Password, in.Provider)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			if lockErr := s.Lockouts.RecordFailure(ctx, email, in.Device.IP, in.Device.UserAgent, "bad_password"); lockErr != nil {
				var locked *LockedError
				if errors.As(lockErr, &locked) {
					s.Audit.Record(ctx, Event{
						Action:   "account_locked",
						Resource: "users",
						Level:    domain.ComplianceSecurity,
						NewValues: map[string]any{
							"email":      email,
							"lock_count": locked.LockCount,
						},
						Device: in.Device,
					})
					return nil, lockErr
				}
				l.Error("failed to record login failure", "err", lockErr)
			}
		}
		return nil, err
	}

	user, err := s.Users.Reconcile(ctx, principal, ptype)
	if err != nil {
		return nil, err
	}
	if err := s.checkStatus(user); err != nil {
		return nil, err
	}

	if err := s.Lockouts.RecordSuccess(ctx, email); err != nil {
		l.Warn("failed to clear failure history", "err", err)
	}

	return s.finishLogin(ctx, user, ptype, []string{AMRPassword}, in.Device, in.RememberMe)
}

// LoginWithToken authenticates a provider-issued bearer token, the path a
// client takes when it signed in against a provider directly.
func (s *AuthService) LoginWithToken(ctx context.Context, rawToken string, d domain.DeviceInfo, rememberMe bool) (*LoginResult, error) {
	principal, ptype, err := s.Resolver.VerifyAny(ctx, rawToken)
	if err != nil {
		if errors.Is(err, resolve.ErrNoProvider) {
			return nil, ErrInvalidCredentials
		}
		return nil, mapProviderErr(err)
	}

	if err := s.Lockouts.CheckRate(ctx, normalizeEmail(principal.Email), "login", d.IP, LoginRatePolicy); err != nil {
		return nil, err
	}

	user, err := s.Users.Reconcile(ctx, principal, ptype)
	if err != nil {
		return nil, err
	}
	if err := s.checkStatus(user); err != nil {
		return nil, err
	}

	return s.finishLogin(ctx, user, ptype, []string{AMRFederate}, d, rememberMe)
}

// CompleteMFALogin finishes a login parked behind an MFA challenge.
func (s *AuthService) CompleteMFALogin(ctx context.Context, mfaToken, method, code string, d domain.DeviceInfo) (*LoginResult, error) {
	ch, err := s.MFA.CompleteChallenge(ctx, mfaToken, method, code)
	if err != nil {
		return nil, err
	}

	user, err := s.Store.Users().GetByID(ctx, ch.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.checkStatus(user); err != nil {
		return nil, err
	}

	return s.issueForSession(ctx, user, ch.Provider, []string{AMRPassword, AMRMFA}, ch.SessionID, ch.DeviceID, d, ch.RememberMe)
}

// Refresh rotates a refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshOpaque string, d domain.DeviceInfo) (*domain.TokenPair, error) {
	return s.Tokens.Rotate(ctx, refreshOpaque, d)
}

// Logout retires the presented refresh token and its session.
func (s *AuthService) Logout(ctx context.Context, userID int64, sessionID, refreshOpaque string, d domain.DeviceInfo) error {
	now := time.Now().UTC()

	if refreshOpaque != "" {
		if err := s.Tokens.Revoke(ctx, refreshOpaque); err != nil {
			return err
		}
	}
	if sessionID != "" {
		if _, err := s.Store.Sessions().Deactivate(ctx, sessionID); err != nil {
			return err
		}
		if err := s.Store.RefreshTokens().RevokeAllForSession(ctx, sessionID, now); err != nil {
			return err
		}
	}

	s.Audit.Record(ctx, Event{
		UserID:   &userID,
		Action:   "logout",
		Resource: "sessions",
		Device:   d,
	})
	return nil
}

// LogoutAll ends every session and burns every token the user holds.
func (s *AuthService) LogoutAll(ctx context.Context, userID int64, d domain.DeviceInfo) (int64, error) {
	now := time.Now().UTC()

	if _, err := s.Store.RefreshTokens().RevokeAllForUser(ctx, userID, now); err != nil {
		return 0, err
	}
	ended, err := s.Store.Sessions().DeactivateAllForUser(ctx, userID, "")
	if err != nil {
		return 0, err
	}

	s.Audit.Record(ctx, Event{
		UserID:   &userID,
		Action:   "logout_all",
		Resource: "sessions",
		Level:    domain.ComplianceSecurity,
		Device:   d,
	})
	return ended, nil
}

// signIn tries providers in resolution order. An explicit tag pins the
// attempt to one provider; otherwise the user's current provider goes
// first and the rest serve as fallback, which is what lets a login keep
// working mid-migration.
func (s *AuthService) signIn(ctx context.Context, email, password string, explicit provider.Type) (provider.Principal, provider.Type, error) {
	l := slogx.FromContext(ctx)

	if explicit != "" {
		p, err := s.Resolver.Get(explicit)
		if err != nil {
			return provider.Principal{}, "", ErrInvalidCredentials
		}
		principal, _, err := p.SignIn(ctx, email, password)
		if err != nil {
			return provider.Principal{}, "", mapProviderErr(err)
		}
		return principal, p.Type(), nil
	}

	var current provider.Type
	if user, err := s.Store.Users().GetByEmail(ctx, email); err == nil {
		current = provider.Type(user.CurrentAuthProvider)
	}

	var lastErr error
	for _, p := range s.Resolver.ForEmail(current) {
		principal, _, err := p.SignIn(ctx, email, password)
		if err == nil {
			return principal, p.Type(), nil
		}
		lastErr = err

		// Not-found means "wrong pool, try the next"; anything else is a
		// real verdict from the pool that does know this identity.
		if !provider.IsCode(err, provider.CodeNotFound) {
			l.Debug("provider rejected credentials",
				"provider", p.Type(),
				"code", provider.CodeOf(err),
			)
			return provider.Principal{}, "", mapProviderErr(err)
		}
	}
	return provider.Principal{}, "", mapProviderErr(lastErr)
}

// finishLogin mints session identity and either issues tokens or parks the
// login behind an MFA challenge.
func (s *AuthService) finishLogin(ctx context.Context, user domain.User, ptype provider.Type, amr []string, d domain.DeviceInfo, rememberMe bool) (*LoginResult, error) {
	sessionID := uuid.NewString()
	deviceID := deriveDeviceID(user.ID, d)

	if user.MFAEnabled {
		challenge, err := s.MFA.BeginChallenge(ctx, user.ID, string(ptype), sessionID, deviceID, d, rememberMe)
		if err != nil {
			return nil, err
		}
		return &LoginResult{Challenge: challenge, User: user}, nil
	}

	return s.issueForSession(ctx, user, string(ptype), amr, sessionID, deviceID, d, rememberMe)
}

// issueForSession creates the session and device records and the token
// pair in one go. Called directly on MFA completion with the identifiers
// the challenge reserved.
func (s *AuthService) issueForSession(ctx context.Context, user domain.User, ptype string, amr []string, sessionID, deviceID string, d domain.DeviceInfo, rememberMe bool) (*LoginResult, error) {
	now := time.Now().UTC()

	// First sighting of this device is worth an audit record. Advisory
	// only, the login proceeds either way.
	newDevice := false
	if _, err := s.Store.Devices().Get(ctx, user.ID, deviceID); errors.Is(err, store.ErrNotFound) {
		newDevice = true
	}

	session := domain.Session{
		ID:           sessionID,
		UserID:       user.ID,
		DeviceID:     deviceID,
		IP:           d.IP,
		UserAgent:    d.UserAgent,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(s.Tokens.refreshTTL(rememberMe)),
		IsActive:     true,
		RememberMe:   rememberMe,
	}
	device := domain.DeviceFingerprint{
		ID:              idx.NewID(),
		UserID:          user.ID,
		DeviceID:        deviceID,
		FingerprintHash: fingerprintDevice(d),
		FirstSeen:       now,
		LastSeen:        now,
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().Create(ctx, session); err != nil {
			return err
		}
		if err := tx.Devices().Upsert(ctx, device); err != nil {
			return err
		}
		return tx.Users().RecordLogin(ctx, user.ID, now)
	})
	if err != nil {
		return nil, err
	}

	pair, err := s.Tokens.Issue(ctx, user, IssueInput{
		SessionID:    sessionID,
		DeviceID:     deviceID,
		ProviderType: ptype,
		AMR:          amr,
		Device:       d,
		RememberMe:   rememberMe,
	})
	if err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, Event{
		UserID:   &user.ID,
		Action:   "login",
		Resource: "sessions",
		NewValues: map[string]string{
			"session_id": sessionID,
			"provider":   ptype,
		},
		Device: d,
	})
	if newDevice {
		s.Audit.Record(ctx, Event{
			UserID:    &user.ID,
			Action:    "login_from_new_device",
			Resource:  "sessions",
			Level:     domain.ComplianceSecurity,
			NewValues: map[string]string{"device_id": deviceID},
			Device:    d,
		})
	}

	return &LoginResult{Tokens: pair, User: user}, nil
}

func (s *AuthService) checkStatus(user domain.User) error {
	switch user.Status {
	case domain.StatusActive:
		return nil
	case domain.StatusPendingVerification:
		return ErrNotConfirmed
	default:
		return ErrAccountNotActive
	}
}

// validatePassword enforces the password policy: configured minimum length
// plus at least one upper, one lower and one digit.
func (s *AuthService) validatePassword(password string) error {
	minLen := s.PasswordMinLength
	if minLen <= 0 {
		minLen = 8
	}
	if len(password) < minLen {
		return ErrWeakPassword
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return ErrWeakPassword
	}
	return nil
}

// mapProviderErr folds normalized provider codes into service sentinels.
func mapProviderErr(err error) error {
	if err == nil {
		return nil
	}
	switch provider.CodeOf(err) {
	case provider.CodeNotFound, provider.CodeInvalidCredentials:
		// Indistinguishable on purpose
		return ErrInvalidCredentials
	case provider.CodeNotConfirmed:
		return ErrNotConfirmed
	case provider.CodeAlreadyExists:
		return ErrAlreadyExists
	case provider.CodeInvalidCode:
		return ErrInvalidCode
	case provider.CodeRateLimited:
		return &RateLimitedError{RetryAfter: time.Minute}
	case provider.CodeUnavailable:
		return ErrProviderDown
	default:
		return err
	}
}

// deriveDeviceID maps a device deterministically to a UUID so the same
// device keeps the same identity across logins. Scoped per user so two
// users on a shared machine get distinct device records.
func deriveDeviceID(userID int64, d domain.DeviceInfo) string {
	seed := strconv.FormatInt(userID, 10) + "|" + fingerprintDevice(d)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}

// fingerprintDevice hashes the client-observable device traits.
func fingerprintDevice(d domain.DeviceInfo) string {
	h := sha256.New()
	h.Write([]byte(d.UserAgent))
	h.Write([]byte{0})
	h.Write([]byte(d.Platform))
	h.Write([]byte{0})
	h.Write([]byte(d.DeviceName))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
