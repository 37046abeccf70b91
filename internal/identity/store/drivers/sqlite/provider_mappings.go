package sqlite

import (
	"context"

	"github.com/clearmind-health/identity/internal/identity/domain"
)

type providerMappingsRepo struct {
	db DBTX
}

func (r *providerMappingsRepo) Create(ctx context.Context, m domain.ProviderMapping) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO provider_mappings (
			id, user_id, provider_type, provider_uid, provider_email, is_primary, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.ProviderType, m.ProviderUID, m.ProviderEmail, m.IsPrimary, m.CreatedAt,
	)
	return mapConflict(err)
}

func (r *providerMappingsRepo) GetByProviderUID(ctx context.Context, providerType, providerUID string) (domain.ProviderMapping, error) {
	var m domain.ProviderMapping
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, provider_type, provider_uid, provider_email, is_primary, created_at
		FROM provider_mappings
		WHERE provider_type = ? AND provider_uid = ?`,
		providerType, providerUID,
	).Scan(&m.ID, &m.UserID, &m.ProviderType, &m.ProviderUID, &m.ProviderEmail, &m.IsPrimary, &m.CreatedAt)
	if err != nil {
		return domain.ProviderMapping{}, mapNotFound(err)
	}
	return m, nil
}

func (r *providerMappingsRepo) ListByUser(ctx context.Context, userID int64) ([]domain.ProviderMapping, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, provider_type, provider_uid, provider_email, is_primary, created_at
		FROM provider_mappings
		WHERE user_id = ?
		ORDER BY is_primary DESC, created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProviderMapping
	for rows.Next() {
		var m domain.ProviderMapping
		if err := rows.Scan(&m.ID, &m.UserID, &m.ProviderType, &m.ProviderUID, &m.ProviderEmail, &m.IsPrimary, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *providerMappingsRepo) SetPrimary(ctx context.Context, userID int64, providerType string) error {
	// Demote everything first so exactly one mapping ends up primary.
	if _, err := r.db.ExecContext(ctx,
		`UPDATE provider_mappings SET is_primary = 0 WHERE user_id = ?`, userID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE provider_mappings SET is_primary = 1 WHERE user_id = ? AND provider_type = ?`,
		userID, providerType)
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

func (r *providerMappingsRepo) Delete(ctx context.Context, userID int64, providerType string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM provider_mappings WHERE user_id = ? AND provider_type = ?`,
		userID, providerType)
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
