package sqlite

import (
	"context"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
)

type mfaRepo struct {
	db DBTX
}

func (r *mfaRepo) GetSettings(ctx context.Context, userID int64) (domain.MFASettings, error) {
	var s domain.MFASettings
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, totp_secret, totp_enabled, sms_phone, sms_enabled, updated_at
		FROM mfa_settings WHERE user_id = ?`,
		userID,
	).Scan(&s.UserID, &s.TOTPSecret, &s.TOTPEnabled, &s.SMSPhone, &s.SMSEnabled, &s.UpdatedAt)
	if err != nil {
		return domain.MFASettings{}, mapNotFound(err)
	}
	return s, nil
}

// upsertSettings writes one column via insert-or-update so callers never
// need to know whether a settings row exists yet.
func (r *mfaRepo) upsertSettings(ctx context.Context, userID int64, column string, value any) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_settings (user_id, `+column+`, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			`+column+` = excluded.`+column+`,
			updated_at = excluded.updated_at`,
		userID, value, time.Now().UTC(),
	)
	return err
}

func (r *mfaRepo) SetTOTPSecret(ctx context.Context, userID int64, secret string) error {
	return r.upsertSettings(ctx, userID, "totp_secret", secret)
}

func (r *mfaRepo) EnableTOTP(ctx context.Context, userID int64) error {
	return r.upsertSettings(ctx, userID, "totp_enabled", true)
}

func (r *mfaRepo) DisableTOTP(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE mfa_settings SET totp_secret = '', totp_enabled = 0, updated_at = ?
		WHERE user_id = ?`,
		time.Now().UTC(), userID)
	return err
}

func (r *mfaRepo) SetSMSPhone(ctx context.Context, userID int64, phone string) error {
	return r.upsertSettings(ctx, userID, "sms_phone", phone)
}

func (r *mfaRepo) EnableSMS(ctx context.Context, userID int64) error {
	return r.upsertSettings(ctx, userID, "sms_enabled", true)
}

func (r *mfaRepo) DisableSMS(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE mfa_settings SET sms_phone = '', sms_enabled = 0, updated_at = ?
		WHERE user_id = ?`,
		time.Now().UTC(), userID)
	return err
}

// ReplaceSMSCode keeps at most one live code per user. The primary key on
// user_id makes the replacement atomic.
func (r *mfaRepo) ReplaceSMSCode(ctx context.Context, c domain.MFASMSCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_sms_codes (user_id, code_hash, expires_at, attempts, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			code_hash = excluded.code_hash,
			expires_at = excluded.expires_at,
			attempts = excluded.attempts,
			created_at = excluded.created_at`,
		c.UserID, c.CodeHash, c.ExpiresAt, c.Attempts, c.CreatedAt,
	)
	return err
}

func (r *mfaRepo) GetSMSCode(ctx context.Context, userID int64) (domain.MFASMSCode, error) {
	var c domain.MFASMSCode
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, code_hash, expires_at, attempts, created_at
		FROM mfa_sms_codes WHERE user_id = ?`,
		userID,
	).Scan(&c.UserID, &c.CodeHash, &c.ExpiresAt, &c.Attempts, &c.CreatedAt)
	if err != nil {
		return domain.MFASMSCode{}, mapNotFound(err)
	}
	return c, nil
}

func (r *mfaRepo) IncrementSMSCodeAttempts(ctx context.Context, userID int64) (int, error) {
	_, err := r.db.ExecContext(ctx,
		`UPDATE mfa_sms_codes SET attempts = attempts + 1 WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.QueryRowContext(ctx,
		`SELECT attempts FROM mfa_sms_codes WHERE user_id = ?`, userID,
	).Scan(&n)
	return n, mapNotFound(err)
}

func (r *mfaRepo) DeleteSMSCode(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_sms_codes WHERE user_id = ?`, userID)
	return err
}

func (r *mfaRepo) CreateChallenge(ctx context.Context, ch domain.MFAChallenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_challenges (
			id, user_id, provider, session_id, device_id, ip, user_agent,
			remember_me, attempts, expires_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ch.ID, ch.UserID, ch.Provider, ch.SessionID, ch.DeviceID, ch.IP,
		ch.UserAgent, ch.RememberMe, ch.Attempts, ch.ExpiresAt, ch.CreatedAt,
	)
	return mapConflict(err)
}

func (r *mfaRepo) GetChallenge(ctx context.Context, token string) (domain.MFAChallenge, error) {
	var ch domain.MFAChallenge
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, provider, session_id, device_id, ip, user_agent,
			remember_me, attempts, expires_at, created_at
		FROM mfa_challenges
		WHERE id = ? AND expires_at > ?`,
		token, time.Now().UTC(),
	).Scan(&ch.ID, &ch.UserID, &ch.Provider, &ch.SessionID, &ch.DeviceID,
		&ch.IP, &ch.UserAgent, &ch.RememberMe, &ch.Attempts, &ch.ExpiresAt, &ch.CreatedAt)
	if err != nil {
		return domain.MFAChallenge{}, mapNotFound(err)
	}
	return ch, nil
}

func (r *mfaRepo) IncrementChallengeAttempts(ctx context.Context, token string) (domain.MFAChallenge, error) {
	_, err := r.db.ExecContext(ctx,
		`UPDATE mfa_challenges SET attempts = attempts + 1 WHERE id = ?`, token)
	if err != nil {
		return domain.MFAChallenge{}, err
	}
	return r.GetChallenge(ctx, token)
}

func (r *mfaRepo) DeleteChallenge(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_challenges WHERE id = ?`, token)
	return err
}

func (r *mfaRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_challenges WHERE expires_at <= ?`, now)
	return err
}

func (r *mfaRepo) DeleteExpiredSMSCodes(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_sms_codes WHERE expires_at <= ?`, now)
	return err
}
