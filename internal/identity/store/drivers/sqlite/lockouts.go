package sqlite

import (
	"context"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
)

type lockoutsRepo struct {
	db DBTX
}

func (r *lockoutsRepo) RecordFailedAttempt(ctx context.Context, a domain.FailedLoginAttempt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO failed_login_attempts (id, email, ip, user_agent, reason, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.IP, a.UserAgent, a.Reason, a.AttemptedAt,
	)
	return err
}

func (r *lockoutsRepo) CountRecentFailures(ctx context.Context, email string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM failed_login_attempts WHERE email = ? AND attempted_at >= ?`,
		email, since,
	).Scan(&n)
	return n, err
}

func (r *lockoutsRepo) DeleteFailures(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM failed_login_attempts WHERE email = ?`, email)
	return err
}

func (r *lockoutsRepo) GetLockout(ctx context.Context, email string) (domain.AccountLockout, error) {
	var l domain.AccountLockout
	err := r.db.QueryRowContext(ctx,
		`SELECT email, locked_until, lock_count, updated_at FROM account_lockouts WHERE email = ?`,
		email,
	).Scan(&l.Email, &l.LockedUntil, &l.LockCount, &l.UpdatedAt)
	if err != nil {
		return domain.AccountLockout{}, mapNotFound(err)
	}
	return l, nil
}

func (r *lockoutsRepo) UpsertLockout(ctx context.Context, l domain.AccountLockout) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO account_lockouts (email, locked_until, lock_count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			locked_until = excluded.locked_until,
			lock_count = excluded.lock_count,
			updated_at = excluded.updated_at`,
		l.Email, l.LockedUntil, l.LockCount, l.UpdatedAt,
	)
	return err
}

// ClearLockout lifts the active lock by backdating locked_until. The row
// itself stays so lock_count keeps escalating on the next episode.
func (r *lockoutsRepo) ClearLockout(ctx context.Context, email string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE account_lockouts SET locked_until = ?, updated_at = ? WHERE email = ?`,
		at, at, email)
	return err
}

func (r *lockoutsRepo) IncrementRateWindow(ctx context.Context, key string, windowStart time.Time) (int, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rate_windows (key, window_start, count)
		VALUES (?, ?, 1)
		ON CONFLICT (key, window_start) DO UPDATE SET count = count + 1`,
		key, windowStart,
	)
	if err != nil {
		return 0, err
	}

	var n int
	err = r.db.QueryRowContext(ctx,
		`SELECT count FROM rate_windows WHERE key = ? AND window_start = ?`,
		key, windowStart,
	).Scan(&n)
	return n, err
}

func (r *lockoutsRepo) DeleteExpiredWindows(ctx context.Context, before time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM rate_windows WHERE window_start < ?`, before)
	return err
}

func (r *lockoutsRepo) DeleteOldFailures(ctx context.Context, before time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM failed_login_attempts WHERE attempted_at < ?`, before)
	return err
}
