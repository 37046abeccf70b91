package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
)

type auditRepo struct {
	db DBTX
}

func (r *auditRepo) Append(ctx context.Context, rec domain.AuditRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (
			id, user_id, action, resource, old_values, new_values,
			ip, user_agent, compliance_level, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, mapOptionalInt64(rec.UserID), rec.Action, rec.Resource,
		rec.OldValues, rec.NewValues, rec.IP, rec.UserAgent,
		rec.ComplianceLevel, rec.CreatedAt,
	)
	return err
}

func (r *auditRepo) ListForUser(ctx context.Context, userID int64, limit, offset int) ([]domain.AuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, action, resource, old_values, new_values,
			ip, user_agent, compliance_level, created_at
		FROM audit_log
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditRows(rows)
}

func (r *auditRepo) ListRecent(ctx context.Context, limit, offset int) ([]domain.AuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, action, resource, old_values, new_values,
			ip, user_agent, compliance_level, created_at
		FROM audit_log
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditRows(rows)
}

func (r *auditRepo) DeleteOlderThan(ctx context.Context, before time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM audit_log WHERE created_at < ?`, before)
	return err
}

func scanAuditRows(rows *sql.Rows) ([]domain.AuditRecord, error) {
	var out []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		var userID sql.NullInt64
		if err := rows.Scan(&rec.ID, &userID, &rec.Action, &rec.Resource,
			&rec.OldValues, &rec.NewValues, &rec.IP, &rec.UserAgent,
			&rec.ComplianceLevel, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.UserID = mapNullInt64Ptr(userID)
		out = append(out, rec)
	}
	return out, rows.Err()
}
