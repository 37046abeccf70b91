package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
)

type localPrincipalsRepo struct {
	db DBTX
}

const localPrincipalColumns = `uid, email, password_hash, confirmed,
	confirmation_code_hash, reset_code_hash, code_expires_at, created_at, updated_at`

func scanLocalPrincipal(row *sql.Row) (domain.LocalPrincipal, error) {
	var p domain.LocalPrincipal
	var codeExpires sql.NullTime
	err := row.Scan(
		&p.UID, &p.Email, &p.PasswordHash, &p.Confirmed,
		&p.ConfirmationCodeHash, &p.ResetCodeHash, &codeExpires,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.LocalPrincipal{}, mapNotFound(err)
	}
	p.CodeExpiresAt = mapNullTimePtr(codeExpires)
	return p, nil
}

func (r *localPrincipalsRepo) Create(ctx context.Context, p domain.LocalPrincipal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO local_principals (
			uid, email, password_hash, confirmed, confirmation_code_hash,
			reset_code_hash, code_expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UID, p.Email, p.PasswordHash, p.Confirmed, p.ConfirmationCodeHash,
		p.ResetCodeHash, mapOptionalTime(p.CodeExpiresAt), p.CreatedAt, p.UpdatedAt,
	)
	return mapConflict(err)
}

func (r *localPrincipalsRepo) GetByEmail(ctx context.Context, email string) (domain.LocalPrincipal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+localPrincipalColumns+` FROM local_principals WHERE email = ?`, email)
	return scanLocalPrincipal(row)
}

func (r *localPrincipalsRepo) GetByUID(ctx context.Context, uid string) (domain.LocalPrincipal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+localPrincipalColumns+` FROM local_principals WHERE uid = ?`, uid)
	return scanLocalPrincipal(row)
}

func (r *localPrincipalsRepo) UpdatePasswordHash(ctx context.Context, uid string, hash string) error {
	return r.exec(ctx,
		`UPDATE local_principals SET password_hash = ?, updated_at = ? WHERE uid = ?`,
		hash, time.Now().UTC(), uid)
}

func (r *localPrincipalsRepo) SetConfirmed(ctx context.Context, uid string) error {
	return r.exec(ctx, `
		UPDATE local_principals
		SET confirmed = 1, confirmation_code_hash = '', code_expires_at = NULL, updated_at = ?
		WHERE uid = ?`,
		time.Now().UTC(), uid)
}

func (r *localPrincipalsRepo) SetConfirmationCode(ctx context.Context, uid string, codeHash string, expiresAt time.Time) error {
	return r.exec(ctx, `
		UPDATE local_principals
		SET confirmation_code_hash = ?, code_expires_at = ?, updated_at = ?
		WHERE uid = ?`,
		codeHash, expiresAt, time.Now().UTC(), uid)
}

func (r *localPrincipalsRepo) SetResetCode(ctx context.Context, uid string, codeHash string, expiresAt time.Time) error {
	return r.exec(ctx, `
		UPDATE local_principals
		SET reset_code_hash = ?, code_expires_at = ?, updated_at = ?
		WHERE uid = ?`,
		codeHash, expiresAt, time.Now().UTC(), uid)
}

func (r *localPrincipalsRepo) ClearCodes(ctx context.Context, uid string) error {
	return r.exec(ctx, `
		UPDATE local_principals
		SET confirmation_code_hash = '', reset_code_hash = '', code_expires_at = NULL, updated_at = ?
		WHERE uid = ?`,
		time.Now().UTC(), uid)
}

func (r *localPrincipalsRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errNoRows()
	}
	return nil
}
