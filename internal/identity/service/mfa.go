package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/internal/identity/notify"
	"github.com/clearmind-health/identity/internal/identity/store"
	"github.com/clearmind-health/identity/pkg/cryptox"
	"github.com/clearmind-health/identity/pkg/idx"
	"github.com/clearmind-health/identity/pkg/slogx"
)

const (
	// MaxMFAAttempts caps failed code entries per challenge or SMS code.
	MaxMFAAttempts = 5

	// BackupCodeCount is how many single-use codes a regeneration issues.
	BackupCodeCount = 10

	smsCodeTTL   = 10 * time.Minute
	challengeTTL = 5 * time.Minute
)

// MFA method names accepted on challenge completion.
const (
	MethodTOTP       = "totp"
	MethodSMS        = "sms"
	MethodBackupCode = "backup_codes"
)

type MFAService struct {
	Store  store.Store
	Sender notify.Sender

	// Issuer is the name shown in authenticator apps.
	Issuer string
}

// SetupTOTP issues a fresh secret in pending state. The factor only counts
// once VerifyTOTP confirms the user's authenticator produces valid codes.
func (s *MFAService) SetupTOTP(ctx context.Context, userID int64) (*domain.MFAEnrollResponse, error) {
	user, err := s.Store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Email,
	})
	if err != nil {
		return nil, err
	}

	if err := s.Store.MFA().SetTOTPSecret(ctx, userID, key.Secret()); err != nil {
		return nil, err
	}

	return &domain.MFAEnrollResponse{
		Secret:  key.Secret(),
		QRCode:  key.URL(),
		Issuer:  s.Issuer,
		Account: user.Email,
	}, nil
}

// VerifyTOTP confirms the pending secret and enables the factor. The first
// successful confirmation also issues the user's backup codes.
func (s *MFAService) VerifyTOTP(ctx context.Context, userID int64, code string) ([]string, error) {
	settings, err := s.Store.MFA().GetSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMFANotEnabled
		}
		return nil, err
	}
	if settings.TOTPSecret == "" {
		return nil, ErrMFANotEnabled
	}

	if !totp.Validate(code, settings.TOTPSecret) {
		return nil, ErrInvalidCode
	}

	alreadyEnabled := settings.AnyEnabled()
	if err := s.Store.MFA().EnableTOTP(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.Store.Users().SetMFAEnabled(ctx, userID, true); err != nil {
		return nil, err
	}

	// First factor enabled gets backup codes; re-verification does not
	// silently rotate them.
	if alreadyEnabled {
		return nil, nil
	}
	return s.issueBackupCodes(ctx, userID)
}

// SetupSMS registers a phone number in pending state and sends the first
// verification code to it.
func (s *MFAService) SetupSMS(ctx context.Context, userID int64, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ErrInvalidCode
	}
	if err := s.Store.MFA().SetSMSPhone(ctx, userID, phone); err != nil {
		return err
	}
	return s.sendSMSCode(ctx, userID, phone)
}

// SendSMSCode delivers a login code to the user's registered number,
// replacing any code still outstanding.
func (s *MFAService) SendSMSCode(ctx context.Context, userID int64) error {
	settings, err := s.Store.MFA().GetSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMFANotEnabled
		}
		return err
	}
	if settings.SMSPhone == "" {
		return ErrMFANotEnabled
	}
	return s.sendSMSCode(ctx, userID, settings.SMSPhone)
}

func (s *MFAService) sendSMSCode(ctx context.Context, userID int64, phone string) error {
	code, err := cryptox.GenerateNumericCode(6)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	rec := domain.MFASMSCode{
		UserID:    userID,
		CodeHash:  cryptox.FingerprintToken(code),
		ExpiresAt: now.Add(smsCodeTTL),
		CreatedAt: now,
	}
	if err := s.Store.MFA().ReplaceSMSCode(ctx, rec); err != nil {
		return err
	}
	return s.Sender.SendSMS(ctx, phone, "Your verification code is "+code)
}

// VerifySMS checks a code against the single live SMS code. A correct code
// enables the factor if it was pending; codes are burned on success and
// attempt-capped on failure.
func (s *MFAService) VerifySMS(ctx context.Context, userID int64, code string) error {
	now := time.Now().UTC()

	rec, err := s.Store.MFA().GetSMSCode(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCode
		}
		return err
	}
	if now.After(rec.ExpiresAt) {
		_ = s.Store.MFA().DeleteSMSCode(ctx, userID)
		return ErrInvalidCode
	}
	if rec.Attempts >= MaxMFAAttempts {
		_ = s.Store.MFA().DeleteSMSCode(ctx, userID)
		return ErrTooManyAttempts
	}

	if cryptox.FingerprintToken(code) != rec.CodeHash {
		attempts, err := s.Store.MFA().IncrementSMSCodeAttempts(ctx, userID)
		if err == nil && attempts >= MaxMFAAttempts {
			_ = s.Store.MFA().DeleteSMSCode(ctx, userID)
		}
		return ErrInvalidCode
	}

	if err := s.Store.MFA().DeleteSMSCode(ctx, userID); err != nil {
		return err
	}

	settings, err := s.Store.MFA().GetSettings(ctx, userID)
	if err != nil {
		return err
	}
	if settings.SMSPending() {
		alreadyEnabled := settings.AnyEnabled()
		if err := s.Store.MFA().EnableSMS(ctx, userID); err != nil {
			return err
		}
		if err := s.Store.Users().SetPhoneVerified(ctx, userID, true); err != nil {
			return err
		}
		if err := s.Store.Users().SetMFAEnabled(ctx, userID, true); err != nil {
			return err
		}
		if !alreadyEnabled {
			if _, err := s.issueBackupCodes(ctx, userID); err != nil {
				return err
			}
		}
	}
	return nil
}

// RegenerateBackupCodes replaces whatever codes remain with a fresh set.
func (s *MFAService) RegenerateBackupCodes(ctx context.Context, userID int64) ([]string, error) {
	settings, err := s.Store.MFA().GetSettings(ctx, userID)
	if err != nil || !settings.AnyEnabled() {
		return nil, ErrMFANotEnabled
	}
	if err := s.Store.BackupCodes().DeleteAll(ctx, userID); err != nil {
		return nil, err
	}
	return s.issueBackupCodes(ctx, userID)
}

// Disable turns off every factor and deletes backup codes.
func (s *MFAService) Disable(ctx context.Context, userID int64) error {
	if err := s.Store.MFA().DisableTOTP(ctx, userID); err != nil {
		return err
	}
	if err := s.Store.MFA().DisableSMS(ctx, userID); err != nil {
		return err
	}
	if err := s.Store.BackupCodes().DeleteAll(ctx, userID); err != nil {
		return err
	}
	return s.Store.Users().SetMFAEnabled(ctx, userID, false)
}

// Status reports the user's factor configuration with the phone masked.
func (s *MFAService) Status(ctx context.Context, userID int64) (domain.MFAStatus, error) {
	settings, err := s.Store.MFA().GetSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.MFAStatus{}, nil
		}
		return domain.MFAStatus{}, err
	}

	left, err := s.Store.BackupCodes().Count(ctx, userID)
	if err != nil {
		return domain.MFAStatus{}, err
	}

	return domain.MFAStatus{
		Enabled:         settings.AnyEnabled(),
		TOTPEnabled:     settings.TOTPEnabled,
		TOTPPending:     settings.TOTPPending(),
		SMSEnabled:      settings.SMSEnabled,
		SMSPending:      settings.SMSPending(),
		SMSPhone:        maskPhone(settings.SMSPhone),
		BackupCodesLeft: left,
	}, nil
}

// Methods lists the completion methods available to a user's challenge.
func (s *MFAService) Methods(ctx context.Context, userID int64) []string {
	settings, err := s.Store.MFA().GetSettings(ctx, userID)
	if err != nil {
		return nil
	}

	var methods []string
	if settings.TOTPEnabled {
		methods = append(methods, MethodTOTP)
	}
	if settings.SMSEnabled {
		methods = append(methods, MethodSMS)
	}
	if n, err := s.Store.BackupCodes().Count(ctx, userID); err == nil && n > 0 {
		methods = append(methods, MethodBackupCode)
	}
	return methods
}

// BeginChallenge opens the second-factor gate for a login whose first
// factor already passed. The returned token is the only credential the
// client holds until the challenge completes.
func (s *MFAService) BeginChallenge(ctx context.Context, userID int64, providerType, sessionID, deviceID string, d domain.DeviceInfo, rememberMe bool) (*domain.MFAChallengeResponse, error) {
	now := time.Now().UTC()

	ch := domain.MFAChallenge{
		ID:         idx.NewHandle(),
		UserID:     userID,
		Provider:   providerType,
		SessionID:  sessionID,
		DeviceID:   deviceID,
		IP:         d.IP,
		UserAgent:  d.UserAgent,
		RememberMe: rememberMe,
		ExpiresAt:  now.Add(challengeTTL),
		CreatedAt:  now,
	}
	if err := s.Store.MFA().CreateChallenge(ctx, ch); err != nil {
		return nil, err
	}

	// SMS users get their code pushed as part of opening the gate.
	methods := s.Methods(ctx, userID)
	for _, m := range methods {
		if m == MethodSMS {
			if err := s.SendSMSCode(ctx, userID); err != nil {
				slogx.FromContext(ctx).Warn("failed to send sms login code", "user_id", userID, "err", err)
			}
			break
		}
	}

	return &domain.MFAChallengeResponse{
		RequiresMFA: true,
		UserID:      userID,
		MFAToken:    ch.ID,
		Methods:     methods,
	}, nil
}

// CompleteChallenge verifies the second factor and consumes the challenge.
// It returns the challenge context the login needs to finish issuing
// tokens. Failures count against the attempt cap; hitting the cap destroys
// the challenge.
func (s *MFAService) CompleteChallenge(ctx context.Context, mfaToken, method, code string) (domain.MFAChallenge, error) {
	l := slogx.FromContext(ctx)

	ch, err := s.Store.MFA().GetChallenge(ctx, mfaToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.MFAChallenge{}, ErrInvalidCode
		}
		return domain.MFAChallenge{}, err
	}

	if ch.Attempts >= MaxMFAAttempts {
		_ = s.Store.MFA().DeleteChallenge(ctx, mfaToken)
		l.Warn("mfa challenge exceeded max attempts", "user_id", ch.UserID, "attempts", ch.Attempts)
		return domain.MFAChallenge{}, ErrTooManyAttempts
	}

	var verifyErr error
	switch method {
	case MethodTOTP:
		verifyErr = s.verifyTOTPCode(ctx, ch.UserID, code)

	case MethodSMS:
		verifyErr = s.VerifySMS(ctx, ch.UserID, code)

	case MethodBackupCode:
		verifyErr = s.verifyBackupCode(ctx, ch.UserID, code)

	case "":
		// No method named: try each enrolled factor in order, first
		// match wins and is consumed.
		verifyErr = s.verifyTOTPCode(ctx, ch.UserID, code)
		if errors.Is(verifyErr, ErrInvalidCode) || errors.Is(verifyErr, ErrMFANotEnabled) {
			verifyErr = s.VerifySMS(ctx, ch.UserID, code)
		}
		if errors.Is(verifyErr, ErrInvalidCode) || errors.Is(verifyErr, ErrMFANotEnabled) {
			verifyErr = s.verifyBackupCode(ctx, ch.UserID, code)
		}
		if errors.Is(verifyErr, ErrMFANotEnabled) {
			verifyErr = ErrInvalidCode
		}

	default:
		verifyErr = ErrInvalidCode
	}

	if verifyErr != nil {
		updated, err := s.Store.MFA().IncrementChallengeAttempts(ctx, mfaToken)
		if err == nil && updated.Attempts >= MaxMFAAttempts {
			_ = s.Store.MFA().DeleteChallenge(ctx, mfaToken)
		}
		l.Warn("mfa verification failed",
			"user_id", ch.UserID,
			"method", method,
		)
		return domain.MFAChallenge{}, verifyErr
	}

	if err := s.Store.MFA().DeleteChallenge(ctx, mfaToken); err != nil {
		return domain.MFAChallenge{}, err
	}
	return ch, nil
}

func (s *MFAService) verifyTOTPCode(ctx context.Context, userID int64, code string) error {
	settings, err := s.Store.MFA().GetSettings(ctx, userID)
	if err != nil || !settings.TOTPEnabled {
		return ErrMFANotEnabled
	}
	if !totp.Validate(code, settings.TOTPSecret) {
		return ErrInvalidCode
	}
	return nil
}

// verifyBackupCode burns the code on a match.
func (s *MFAService) verifyBackupCode(ctx context.Context, userID int64, code string) error {
	codeHash := cryptox.FingerprintToken(normalizeBackupCode(code))
	valid, err := s.Store.BackupCodes().Verify(ctx, userID, codeHash)
	if err != nil {
		return err
	}
	if !valid {
		return ErrInvalidCode
	}
	return s.Store.BackupCodes().Delete(ctx, userID, codeHash)
}

func (s *MFAService) issueBackupCodes(ctx context.Context, userID int64) ([]string, error) {
	codes := make([]string, 0, BackupCodeCount)
	for range BackupCodeCount {
		code, err := cryptox.GenerateNumericCode(8)
		if err != nil {
			return nil, err
		}
		if err := s.Store.BackupCodes().Create(ctx, userID, cryptox.FingerprintToken(code)); err != nil {
			return nil, err
		}
		codes = append(codes, fmt.Sprintf("%s-%s", code[:4], code[4:]))
	}
	return codes, nil
}

// normalizeBackupCode strips the display hyphen.
func normalizeBackupCode(code string) string {
	return strings.ReplaceAll(strings.TrimSpace(code), "-", "")
}

func maskPhone(phone string) string {
	if len(phone) <= 2 {
		return phone
	}
	return strings.Repeat("*", len(phone)-2) + phone[len(phone)-2:]
}
