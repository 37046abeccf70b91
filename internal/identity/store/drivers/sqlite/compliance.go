package sqlite

import (
	"context"

	"github.com/clearmind-health/identity/internal/identity/domain"
)

type complianceRepo struct {
	db DBTX
}

func (r *complianceRepo) RecordConsent(ctx context.Context, c domain.Consent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO consents (id, user_id, consent_type, granted, ip, granted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.ConsentType, c.Granted, c.IP, c.GrantedAt,
	)
	return err
}

func (r *complianceRepo) ListConsents(ctx context.Context, userID int64) ([]domain.Consent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, consent_type, granted, ip, granted_at
		FROM consents
		WHERE user_id = ?
		ORDER BY granted_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Consent
	for rows.Next() {
		var c domain.Consent
		if err := rows.Scan(&c.ID, &c.UserID, &c.ConsentType, &c.Granted, &c.IP, &c.GrantedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *complianceRepo) CreateExportRequest(ctx context.Context, req domain.DataExportRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO data_export_requests (id, user_id, status, requested_at)
		VALUES (?, ?, ?, ?)`,
		req.ID, req.UserID, req.Status, req.RequestedAt,
	)
	return err
}

func (r *complianceRepo) GetExportRequest(ctx context.Context, id int64) (domain.DataExportRequest, error) {
	var req domain.DataExportRequest
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, requested_at
		FROM data_export_requests WHERE id = ?`,
		id,
	).Scan(&req.ID, &req.UserID, &req.Status, &req.RequestedAt)
	if err != nil {
		return domain.DataExportRequest{}, mapNotFound(err)
	}
	return req, nil
}

func (r *complianceRepo) UpdateExportStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE data_export_requests SET status = ? WHERE id = ?`,
		status, id)
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
