package sqlite

import (
	"context"

	"github.com/clearmind-health/identity/internal/identity/domain"
)

type devicesRepo struct {
	db DBTX
}

// Upsert records a device sighting. On conflict only last_seen and the
// fingerprint move; first_seen and is_trusted survive.
func (r *devicesRepo) Upsert(ctx context.Context, d domain.DeviceFingerprint) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_fingerprints (
			id, user_id, device_id, fingerprint_hash, first_seen, last_seen, is_trusted
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			fingerprint_hash = excluded.fingerprint_hash,
			last_seen = excluded.last_seen`,
		d.ID, d.UserID, d.DeviceID, d.FingerprintHash, d.FirstSeen, d.LastSeen, d.IsTrusted,
	)
	return err
}

func (r *devicesRepo) Get(ctx context.Context, userID int64, deviceID string) (domain.DeviceFingerprint, error) {
	var d domain.DeviceFingerprint
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, device_id, fingerprint_hash, first_seen, last_seen, is_trusted
		FROM device_fingerprints WHERE user_id = ? AND device_id = ?`,
		userID, deviceID,
	).Scan(&d.ID, &d.UserID, &d.DeviceID, &d.FingerprintHash, &d.FirstSeen, &d.LastSeen, &d.IsTrusted)
	if err != nil {
		return domain.DeviceFingerprint{}, mapNotFound(err)
	}
	return d, nil
}

func (r *devicesRepo) ListForUser(ctx context.Context, userID int64) ([]domain.DeviceFingerprint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, device_id, fingerprint_hash, first_seen, last_seen, is_trusted
		FROM device_fingerprints
		WHERE user_id = ?
		ORDER BY last_seen DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DeviceFingerprint
	for rows.Next() {
		var d domain.DeviceFingerprint
		if err := rows.Scan(&d.ID, &d.UserID, &d.DeviceID, &d.FingerprintHash,
			&d.FirstSeen, &d.LastSeen, &d.IsTrusted); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *devicesRepo) SetTrusted(ctx context.Context, userID int64, deviceID string, trusted bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE device_fingerprints SET is_trusted = ? WHERE user_id = ? AND device_id = ?`,
		trusted, userID, deviceID)
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

func (r *devicesRepo) Delete(ctx context.Context, userID int64, deviceID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM device_fingerprints WHERE user_id = ? AND device_id = ?`,
		userID, deviceID)
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
