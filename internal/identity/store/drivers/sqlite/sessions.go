package sqlite

import (
	"context"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
)

type sessionsRepo struct {
	db DBTX
}

const sessionColumns = `id, user_id, device_id, ip, user_agent, created_at,
	last_activity, expires_at, is_active, remember_me`

func (r *sessionsRepo) Create(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.DeviceID, s.IP, s.UserAgent, s.CreatedAt,
		s.LastActivity, s.ExpiresAt, s.IsActive, s.RememberMe,
	)
	return mapConflict(err)
}

func (r *sessionsRepo) Get(ctx context.Context, id string) (domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &s.DeviceID, &s.IP, &s.UserAgent, &s.CreatedAt,
		&s.LastActivity, &s.ExpiresAt, &s.IsActive, &s.RememberMe)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) ListActiveForUser(ctx context.Context, userID int64) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND is_active = 1 AND expires_at > ?
		ORDER BY last_activity DESC`,
		userID, time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.DeviceID, &s.IP, &s.UserAgent,
			&s.CreatedAt, &s.LastActivity, &s.ExpiresAt, &s.IsActive, &s.RememberMe); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionsRepo) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ? WHERE id = ? AND is_active = 1`,
		at, id)
	return err
}

func (r *sessionsRepo) Deactivate(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE id = ? AND is_active = 1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *sessionsRepo) DeactivateAllForUser(ctx context.Context, userID int64, exceptID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE user_id = ? AND is_active = 1 AND id != ?`,
		userID, exceptID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) Stats(ctx context.Context, userID int64) (domain.SessionStats, error) {
	var stats domain.SessionStats
	var avgSeconds float64
	now := time.Now().UTC()

	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_active = 1 AND expires_at > ? THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT device_id),
			COALESCE(AVG(CAST(strftime('%s', last_activity) AS INTEGER) - CAST(strftime('%s', created_at) AS INTEGER)), 0)
		FROM sessions WHERE user_id = ?`,
		now, userID,
	).Scan(&stats.TotalSessions, &stats.ActiveSessions, &stats.UniqueDevices, &avgSeconds)
	if err != nil {
		return domain.SessionStats{}, err
	}

	stats.AverageDuration = time.Duration(avgSeconds * float64(time.Second))
	return stats, nil
}

func (r *sessionsRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, now)
	return err
}
