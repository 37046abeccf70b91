package service

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/internal/identity/store"
	"github.com/clearmind-health/identity/pkg/cryptox"
)

func newTestMFAService(st store.Store, sender *captureSender) *MFAService {
	return &MFAService{
		Store:  st,
		Sender: sender,
		Issuer: "ClearMind",
	}
}

// enableTOTP walks a user through setup and confirmation, returning the
// shared secret and the backup codes issued alongside the first factor.
func enableTOTP(t *testing.T, svc *MFAService, userID int64) (string, []string) {
	t.Helper()
	ctx := context.Background()

	enroll, err := svc.SetupTOTP(ctx, userID)
	require.NoError(t, err)
	require.NotEmpty(t, enroll.Secret)

	code, err := totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)

	backupCodes, err := svc.VerifyTOTP(ctx, userID, code)
	require.NoError(t, err)
	return enroll.Secret, backupCodes
}

func TestTOTPSetupAndVerify(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestMFAService(st, &captureSender{})
	user := createTestUser(t, st, "totp@example.com")

	enroll, err := svc.SetupTOTP(ctx, user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, enroll.Secret)
	require.Contains(t, enroll.QRCode, "otpauth://")
	require.Equal(t, "ClearMind", enroll.Issuer)
	require.Equal(t, user.Email, enroll.Account)

	// Pending until the authenticator proves it holds the secret.
	status, err := svc.Status(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, status.Enabled)
	require.True(t, status.TOTPPending)

	code, err := totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)

	backupCodes, err := svc.VerifyTOTP(ctx, user.ID, code)
	require.NoError(t, err)
	require.Len(t, backupCodes, BackupCodeCount)
	for _, c := range backupCodes {
		require.Len(t, c, 9)
		require.Equal(t, byte('-'), c[4])
	}

	status, err = svc.Status(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, status.Enabled)
	require.True(t, status.TOTPEnabled)
	require.False(t, status.TOTPPending)
	require.Equal(t, BackupCodeCount, status.BackupCodesLeft)

	got, err := st.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, got.MFAEnabled)
}

func TestVerifyTOTPRejectsBadCode(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestMFAService(st, &captureSender{})
	user := createTestUser(t, st, "totp-bad@example.com")

	_, err := svc.SetupTOTP(ctx, user.ID)
	require.NoError(t, err)

	_, err = svc.VerifyTOTP(ctx, user.ID, "000000")
	require.ErrorIs(t, err, ErrInvalidCode)

	status, err := svc.Status(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, status.Enabled)
}

func TestVerifyTOTPWithoutSetup(t *testing.T) {
	st := newTestStore(t)
	svc := newTestMFAService(st, &captureSender{})
	user := createTestUser(t, st, "no-setup@example.com")

	_, err := svc.VerifyTOTP(context.Background(), user.ID, "123456")
	require.ErrorIs(t, err, ErrMFANotEnabled)
}

func TestSMSSetupAndVerify(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sender := &captureSender{}
	svc := newTestMFAService(st, sender)
	user := createTestUser(t, st, "sms@example.com")

	require.NoError(t, svc.SetupSMS(ctx, user.ID, "+61400111222"))
	require.Len(t, sender.sms, 1)

	code := lastCode(t, sender.sms)
	require.Len(t, code, 6)

	require.NoError(t, svc.VerifySMS(ctx, user.ID, code))

	status, err := svc.Status(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, status.Enabled)
	require.True(t, status.SMSEnabled)
	require.Equal(t, BackupCodeCount, status.BackupCodesLeft)

	got, err := st.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, got.PhoneVerified)
	require.True(t, got.MFAEnabled)

	// Codes are single use.
	require.ErrorIs(t, svc.VerifySMS(ctx, user.ID, code), ErrInvalidCode)
}

func TestVerifySMSBurnsCodeAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sender := &captureSender{}
	svc := newTestMFAService(st, sender)
	user := createTestUser(t, st, "sms-cap@example.com")

	require.NoError(t, svc.SetupSMS(ctx, user.ID, "+61400333444"))
	code := lastCode(t, sender.sms)

	for range MaxMFAAttempts {
		require.ErrorIs(t, svc.VerifySMS(ctx, user.ID, "000000"), ErrInvalidCode)
	}

	// The real code is dead too once the attempt budget is spent.
	require.ErrorIs(t, svc.VerifySMS(ctx, user.ID, code), ErrInvalidCode)
}

func TestStatusMasksPhone(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sender := &captureSender{}
	svc := newTestMFAService(st, sender)
	user := createTestUser(t, st, "mask@example.com")

	require.NoError(t, svc.SetupSMS(ctx, user.ID, "+61400111222"))

	status, err := svc.Status(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "**********22", status.SMSPhone)
}

func TestChallengeCompleteWithTOTP(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestMFAService(st, &captureSender{})
	user := createTestUser(t, st, "challenge@example.com")
	secret, _ := enableTOTP(t, svc, user.ID)

	res, err := svc.BeginChallenge(ctx, user.ID, "local", "sess-1", "dev-1", domain.DeviceInfo{
		IP:        "203.0.113.9",
		UserAgent: "test-agent",
	}, true)
	require.NoError(t, err)
	require.True(t, res.RequiresMFA)
	require.NotEmpty(t, res.MFAToken)
	require.Contains(t, res.Methods, MethodTOTP)
	require.Contains(t, res.Methods, MethodBackupCode)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	ch, err := svc.CompleteChallenge(ctx, res.MFAToken, MethodTOTP, code)
	require.NoError(t, err)
	require.Equal(t, user.ID, ch.UserID)
	require.Equal(t, "sess-1", ch.SessionID)
	require.Equal(t, "dev-1", ch.DeviceID)
	require.True(t, ch.RememberMe)

	// Completion consumes the challenge.
	_, err = svc.CompleteChallenge(ctx, res.MFAToken, MethodTOTP, code)
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestChallengeBackupCodeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestMFAService(st, &captureSender{})
	user := createTestUser(t, st, "backup@example.com")
	_, backupCodes := enableTOTP(t, svc, user.ID)

	res, err := svc.BeginChallenge(ctx, user.ID, "local", "sess-1", "dev-1", domain.DeviceInfo{}, false)
	require.NoError(t, err)

	_, err = svc.CompleteChallenge(ctx, res.MFAToken, MethodBackupCode, backupCodes[0])
	require.NoError(t, err)

	res2, err := svc.BeginChallenge(ctx, user.ID, "local", "sess-2", "dev-1", domain.DeviceInfo{}, false)
	require.NoError(t, err)

	_, err = svc.CompleteChallenge(ctx, res2.MFAToken, MethodBackupCode, backupCodes[0])
	require.ErrorIs(t, err, ErrInvalidCode)

	left, err := st.BackupCodes().Count(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, BackupCodeCount-1, left)
}

func TestChallengeCompleteWithoutMethod(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestMFAService(st, &captureSender{})
	user := createTestUser(t, st, "no-method@example.com")
	secret, backupCodes := enableTOTP(t, svc, user.ID)

	// A TOTP code resolves without the client naming the method.
	res, err := svc.BeginChallenge(ctx, user.ID, "local", "sess-1", "dev-1", domain.DeviceInfo{}, false)
	require.NoError(t, err)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	ch, err := svc.CompleteChallenge(ctx, res.MFAToken, "", code)
	require.NoError(t, err)
	require.Equal(t, user.ID, ch.UserID)

	// So does a backup code, falling through the factor order, and it is
	// consumed like an explicit backup completion.
	res, err = svc.BeginChallenge(ctx, user.ID, "local", "sess-2", "dev-1", domain.DeviceInfo{}, false)
	require.NoError(t, err)

	_, err = svc.CompleteChallenge(ctx, res.MFAToken, "", backupCodes[0])
	require.NoError(t, err)

	left, err := st.BackupCodes().Count(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, BackupCodeCount-1, left)

	// A code no factor accepts still fails.
	res, err = svc.BeginChallenge(ctx, user.ID, "local", "sess-3", "dev-1", domain.DeviceInfo{}, false)
	require.NoError(t, err)

	_, err = svc.CompleteChallenge(ctx, res.MFAToken, "", "00000000")
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestChallengeDestroyedAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestMFAService(st, &captureSender{})
	user := createTestUser(t, st, "chal-cap@example.com")
	secret, _ := enableTOTP(t, svc, user.ID)

	res, err := svc.BeginChallenge(ctx, user.ID, "local", "sess-1", "dev-1", domain.DeviceInfo{}, false)
	require.NoError(t, err)

	for range MaxMFAAttempts {
		_, err = svc.CompleteChallenge(ctx, res.MFAToken, MethodTOTP, "000000")
		require.ErrorIs(t, err, ErrInvalidCode)
	}

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	_, err = svc.CompleteChallenge(ctx, res.MFAToken, MethodTOTP, code)
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestRegenerateBackupCodesReplacesOld(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestMFAService(st, &captureSender{})
	user := createTestUser(t, st, "regen@example.com")
	_, original := enableTOTP(t, svc, user.ID)

	fresh, err := svc.RegenerateBackupCodes(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, fresh, BackupCodeCount)
	require.NotEqual(t, original, fresh)

	valid, err := st.BackupCodes().Verify(ctx, user.ID, cryptox.FingerprintToken(normalizeBackupCode(original[0])))
	require.NoError(t, err)
	require.False(t, valid)

	valid, err = st.BackupCodes().Verify(ctx, user.ID, cryptox.FingerprintToken(normalizeBackupCode(fresh[0])))
	require.NoError(t, err)
	require.True(t, valid)
}

func TestDisableClearsAllFactors(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestMFAService(st, &captureSender{})
	user := createTestUser(t, st, "disable@example.com")
	enableTOTP(t, svc, user.ID)

	require.NoError(t, svc.Disable(ctx, user.ID))

	status, err := svc.Status(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, status.Enabled)
	require.False(t, status.TOTPEnabled)
	require.Zero(t, status.BackupCodesLeft)

	got, err := st.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, got.MFAEnabled)
}

func TestBeginChallengePushesSMSCode(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sender := &captureSender{}
	svc := newTestMFAService(st, sender)
	user := createTestUser(t, st, "push@example.com")

	require.NoError(t, svc.SetupSMS(ctx, user.ID, "+61400555666"))
	require.NoError(t, svc.VerifySMS(ctx, user.ID, lastCode(t, sender.sms)))

	res, err := svc.BeginChallenge(ctx, user.ID, "local", "sess-1", "dev-1", domain.DeviceInfo{}, false)
	require.NoError(t, err)
	require.Contains(t, res.Methods, MethodSMS)

	// Opening the gate sent a fresh login code.
	require.Len(t, sender.sms, 2)

	ch, err := svc.CompleteChallenge(ctx, res.MFAToken, MethodSMS, lastCode(t, sender.sms))
	require.NoError(t, err)
	require.Equal(t, user.ID, ch.UserID)
}
