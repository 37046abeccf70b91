package domain

import "time"

// LocalPrincipal is a credential record owned by the local identity
// provider. It is the provider's own pool, deliberately separate from the
// users table: the auth core only ever sees it through the provider
// capability interface.
type LocalPrincipal struct {
	UID                  string // ULID, the provider-scoped subject
	Email                string
	PasswordHash         string // argon2id PHC string
	Confirmed            bool
	ConfirmationCodeHash string
	ResetCodeHash        string
	CodeExpiresAt        *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
