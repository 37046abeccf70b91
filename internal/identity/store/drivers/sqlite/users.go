package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
)

type usersRepo struct {
	db DBTX
}

const userColumns = `id, email, first_name, last_name, role, status, current_auth_provider,
	email_verified, phone_verified, mfa_enabled, login_count, last_login_at, created_at, updated_at`

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var lastLogin sql.NullTime
	err := row.Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.Status,
		&u.CurrentAuthProvider, &u.EmailVerified, &u.PhoneVerified,
		&u.MFAEnabled, &u.LoginCount, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.LastLoginAt = mapNullTimePtr(lastLogin)
	return u, nil
}

func (r *usersRepo) GetByID(ctx context.Context, id int64) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *usersRepo) Create(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, email, first_name, last_name, role, status, current_auth_provider,
			email_verified, phone_verified, mfa_enabled, login_count, last_login_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.Role, u.Status,
		u.CurrentAuthProvider, u.EmailVerified, u.PhoneVerified, u.MFAEnabled,
		u.LoginCount, mapOptionalTime(u.LastLoginAt), u.CreatedAt, u.UpdatedAt,
	)
	return mapConflict(err)
}

func (r *usersRepo) UpdateStatus(ctx context.Context, id int64, status domain.Status) error {
	return r.exec(ctx,
		`UPDATE users SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
}

func (r *usersRepo) UpdateProfile(ctx context.Context, id int64, firstName, lastName string) error {
	return r.exec(ctx,
		`UPDATE users SET first_name = ?, last_name = ?, updated_at = ? WHERE id = ?`,
		firstName, lastName, time.Now().UTC(), id)
}

func (r *usersRepo) SetCurrentAuthProvider(ctx context.Context, id int64, providerType string) error {
	return r.exec(ctx,
		`UPDATE users SET current_auth_provider = ?, updated_at = ? WHERE id = ?`,
		providerType, time.Now().UTC(), id)
}

func (r *usersRepo) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx,
		`UPDATE users SET login_count = login_count + 1, last_login_at = ?, updated_at = ? WHERE id = ?`,
		at, at, id)
}

func (r *usersRepo) SetEmailVerified(ctx context.Context, id int64, verified bool) error {
	return r.exec(ctx,
		`UPDATE users SET email_verified = ?, updated_at = ? WHERE id = ?`,
		verified, time.Now().UTC(), id)
}

func (r *usersRepo) SetPhoneVerified(ctx context.Context, id int64, verified bool) error {
	return r.exec(ctx,
		`UPDATE users SET phone_verified = ?, updated_at = ? WHERE id = ?`,
		verified, time.Now().UTC(), id)
}

func (r *usersRepo) SetMFAEnabled(ctx context.Context, id int64, enabled bool) error {
	return r.exec(ctx,
		`UPDATE users SET mfa_enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now().UTC(), id)
}

func (r *usersRepo) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
}

// exec runs a mutation and maps zero affected rows to ErrNotFound.
func (r *usersRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
