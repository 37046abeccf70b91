package service

import (
	"context"
	"errors"
	"slices"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/internal/identity/store"
)

// RBACService answers permission questions. A user's effective permission
// set is the union of every role they hold plus the role named on the user
// row itself, so partially migrated grants never lose access.
type RBACService struct {
	Store store.Store
}

// PermissionsFor computes the effective permission union for a user.
// Implements the authorization middleware's resolver contract.
func (s *RBACService) PermissionsFor(ctx context.Context, userID int64) ([]string, error) {
	roles, err := s.Store.Roles().ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Fold in the coarse role column too.
	if user, err := s.Store.Users().GetByID(ctx, userID); err == nil && user.Role != "" {
		if coarse, err := s.Store.Roles().GetByName(ctx, user.Role); err == nil {
			roles = append(roles, coarse)
		}
	}

	var perms []string
	for _, role := range roles {
		for _, p := range role.Permissions {
			if !slices.Contains(perms, p) {
				perms = append(perms, p)
			}
		}
	}
	return perms, nil
}

// Has reports whether the user holds one permission. Wildcard "*" grants
// everything.
func (s *RBACService) Has(ctx context.Context, userID int64, perm string) (bool, error) {
	perms, err := s.PermissionsFor(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == "*" || p == perm {
			return true, nil
		}
	}
	return false, nil
}

func (s *RBACService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.Store.Roles().ListAll(ctx)
}

func (s *RBACService) RolesFor(ctx context.Context, userID int64) ([]domain.Role, error) {
	return s.Store.Roles().ListForUser(ctx, userID)
}

// Assign grants a role by name.
func (s *RBACService) Assign(ctx context.Context, userID int64, roleName string) error {
	role, err := s.Store.Roles().GetByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.Store.Roles().AssignToUser(ctx, userID, role.ID)
}

// Remove revokes a role by name.
func (s *RBACService) Remove(ctx context.Context, userID int64, roleName string) error {
	role, err := s.Store.Roles().GetByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.Store.Roles().RemoveFromUser(ctx, userID, role.ID)
}
