package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
)

type refreshTokensRepo struct {
	db DBTX
}

func (r *refreshTokensRepo) Create(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (
			id, user_id, token_hash, session_id, device_id, ip, user_agent,
			expires_at, revoked_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.TokenHash, t.SessionID, t.DeviceID, t.IP, t.UserAgent,
		t.ExpiresAt, mapOptionalTime(t.RevokedAt), t.CreatedAt,
	)
	return mapConflict(err)
}

func (r *refreshTokensRepo) GetByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	var t domain.RefreshToken
	var revokedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, session_id, device_id, ip, user_agent,
			expires_at, revoked_at, created_at
		FROM refresh_tokens WHERE token_hash = ?`,
		hash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.SessionID, &t.DeviceID, &t.IP,
		&t.UserAgent, &t.ExpiresAt, &revokedAt, &t.CreatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.RevokedAt = mapNullTimePtr(revokedAt)
	return t, nil
}

// Revoke flips a live token to revoked. The WHERE clause only matches
// unrevoked rows, so a false return means someone else already consumed the
// token. Rotation relies on this to spot replays.
func (r *refreshTokensRepo) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *refreshTokensRepo) RevokeAllForUser(ctx context.Context, userID int64, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`,
		at, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) RevokeAllForSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE session_id = ? AND revoked_at IS NULL`,
		at, sessionID)
	return err
}

func (r *refreshTokensRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < ?`, now)
	return err
}
