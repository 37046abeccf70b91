package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
)

type rolesRepo struct {
	db DBTX
}

func (r *rolesRepo) GetByID(ctx context.Context, id int64) (domain.Role, error) {
	return r.scanOne(ctx,
		`SELECT id, name, permissions, created_at, updated_at FROM roles WHERE id = ?`, id)
}

func (r *rolesRepo) GetByName(ctx context.Context, name string) (domain.Role, error) {
	return r.scanOne(ctx,
		`SELECT id, name, permissions, created_at, updated_at FROM roles WHERE name = ?`, name)
}

func (r *rolesRepo) scanOne(ctx context.Context, query string, arg any) (domain.Role, error) {
	var role domain.Role
	var perms string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&role.ID, &role.Name, &perms, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	role.Permissions = splitAndFilter(perms)
	return role, nil
}

func (r *rolesRepo) ListAll(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, permissions, created_at, updated_at FROM roles ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Role
	for rows.Next() {
		var role domain.Role
		var perms string
		if err := rows.Scan(&role.ID, &role.Name, &perms, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		role.Permissions = splitAndFilter(perms)
		out = append(out, role)
	}
	return out, rows.Err()
}

func (r *rolesRepo) Create(ctx context.Context, role domain.Role) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO roles (id, name, permissions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		role.ID, role.Name, strings.Join(role.Permissions, " "),
		role.CreatedAt, role.UpdatedAt,
	)
	return mapConflict(err)
}

func (r *rolesRepo) AssignToUser(ctx context.Context, userID, roleID int64) error {
	// INSERT OR IGNORE makes re-assignment a no-op.
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_roles (user_id, role_id, granted_at)
		VALUES (?, ?, ?)`,
		userID, roleID, time.Now().UTC(),
	)
	return err
}

func (r *rolesRepo) RemoveFromUser(ctx context.Context, userID, roleID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = ? AND role_id = ?`,
		userID, roleID)
	return err
}

func (r *rolesRepo) ListForUser(ctx context.Context, userID int64) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.permissions, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ?
		ORDER BY r.id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Role
	for rows.Next() {
		var role domain.Role
		var perms string
		if err := rows.Scan(&role.ID, &role.Name, &perms, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		role.Permissions = splitAndFilter(perms)
		out = append(out, role)
	}
	return out, rows.Err()
}
