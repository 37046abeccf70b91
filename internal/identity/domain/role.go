package domain

import "time"

// Role groups permissions. Permissions are parsed from space-delimited
// storage, e.g. "profile:read profile:write sessions:manage".
type Role struct {
	ID          int64
	Name        string
	Permissions []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserRole assigns a role to a user; a user may hold several.
type UserRole struct {
	UserID    int64
	RoleID    int64
	GrantedAt time.Time
}
