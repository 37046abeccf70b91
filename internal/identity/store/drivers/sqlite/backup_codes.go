package sqlite

import (
	"context"
	"time"
)

type backupCodesRepo struct {
	db DBTX
}

func (r *backupCodesRepo) Create(ctx context.Context, userID int64, codeHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO backup_codes (user_id, code_hash, created_at)
		VALUES (?, ?, ?)`,
		userID, codeHash, time.Now().UTC(),
	)
	return mapConflict(err)
}

func (r *backupCodesRepo) Verify(ctx context.Context, userID int64, codeHash string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM backup_codes WHERE user_id = ? AND code_hash = ?`,
		userID, codeHash,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *backupCodesRepo) Delete(ctx context.Context, userID int64, codeHash string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM backup_codes WHERE user_id = ? AND code_hash = ?`,
		userID, codeHash)
	return err
}

func (r *backupCodesRepo) DeleteAll(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM backup_codes WHERE user_id = ?`, userID)
	return err
}

func (r *backupCodesRepo) Count(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM backup_codes WHERE user_id = ?`, userID,
	).Scan(&n)
	return n, err
}
