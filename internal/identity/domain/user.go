package domain

import "time"

// Status is the lifecycle state of a user account.
type Status string

const (
	StatusPendingVerification Status = "pending_verification"
	StatusActive              Status = "active"
	StatusLocked              Status = "locked"
	StatusSuspended           Status = "suspended"
	StatusDeactivated         Status = "deactivated"
)

type User struct {
	ID                  int64
	Email               string
	FirstName           string
	LastName            string
	Role                string // coarse primary role (client, therapist, admin)
	Status              Status
	CurrentAuthProvider string // provider type that last authenticated this user
	EmailVerified       bool
	PhoneVerified       bool
	MFAEnabled          bool
	LoginCount          int64
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ProviderMapping links a local user to a principal held by an identity
// provider. A user may hold mappings to several providers at once while a
// migration is in flight; (ProviderType, ProviderUID) is globally unique.
type ProviderMapping struct {
	ID            int64
	UserID        int64
	ProviderType  string
	ProviderUID   string
	ProviderEmail string
	IsPrimary     bool
	CreatedAt     time.Time
}
