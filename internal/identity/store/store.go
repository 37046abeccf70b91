package store

import (
	"context"
	"errors"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable, and to make it obvious when a caller is about to nest
// transactions.
type Store interface {
	Users() Users
	ProviderMappings() ProviderMappings
	LocalPrincipals() LocalPrincipals
	RefreshTokens() RefreshTokens
	Lockouts() Lockouts
	MFA() MFA
	BackupCodes() BackupCodes
	Sessions() Sessions
	Devices() Devices
	Roles() Roles
	Audit() Audit
	Compliance() Compliance

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g. refresh
	// rotation). The caller MUST call Commit() or Rollback().
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. This is the
	// recommended way to handle transactions.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetByID returns a user by its surrogate id.
	GetByID(ctx context.Context, id int64) (domain.User, error)

	// GetByEmail looks a user up by normalized email.
	GetByEmail(ctx context.Context, email string) (domain.User, error)

	// Create inserts a new user (id is provided by the app via snowflake).
	Create(ctx context.Context, u domain.User) error

	// UpdateStatus moves the account through its lifecycle.
	UpdateStatus(ctx context.Context, id int64, status domain.Status) error

	// UpdateProfile mutates the name fields and bumps updated_at.
	UpdateProfile(ctx context.Context, id int64, firstName, lastName string) error

	// SetCurrentAuthProvider records which provider last authenticated the user.
	SetCurrentAuthProvider(ctx context.Context, id int64, providerType string) error

	// RecordLogin bumps login_count and sets last_login_at.
	RecordLogin(ctx context.Context, id int64, at time.Time) error

	SetEmailVerified(ctx context.Context, id int64, verified bool) error
	SetPhoneVerified(ctx context.Context, id int64, verified bool) error
	SetMFAEnabled(ctx context.Context, id int64, enabled bool) error

	// Delete cascades to provider mappings, sessions and tokens (per schema).
	Delete(ctx context.Context, id int64) error
}

type ProviderMappings interface {
	// Create links a user to a provider principal.
	// (provider_type, provider_uid) is globally unique.
	Create(ctx context.Context, m domain.ProviderMapping) error

	// GetByProviderUID resolves a mapping from the provider's subject.
	GetByProviderUID(ctx context.Context, providerType, providerUID string) (domain.ProviderMapping, error)

	// ListByUser returns every mapping a user holds, primary first.
	ListByUser(ctx context.Context, userID int64) ([]domain.ProviderMapping, error)

	// SetPrimary makes one provider the user's primary and demotes the rest.
	SetPrimary(ctx context.Context, userID int64, providerType string) error

	// Delete removes a single mapping.
	Delete(ctx context.Context, userID int64, providerType string) error
}

type LocalPrincipals interface {
	// Create inserts a new credential record (uid is ULID).
	Create(ctx context.Context, p domain.LocalPrincipal) error

	GetByEmail(ctx context.Context, email string) (domain.LocalPrincipal, error)
	GetByUID(ctx context.Context, uid string) (domain.LocalPrincipal, error)

	// UpdatePasswordHash sets the argon2 hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, uid string, hash string) error

	// SetConfirmed marks the principal as confirmed and clears any codes.
	SetConfirmed(ctx context.Context, uid string) error

	// SetConfirmationCode stores a fresh confirmation code fingerprint.
	SetConfirmationCode(ctx context.Context, uid string, codeHash string, expiresAt time.Time) error

	// SetResetCode stores a fresh password reset code fingerprint.
	SetResetCode(ctx context.Context, uid string, codeHash string, expiresAt time.Time) error

	// ClearCodes wipes both code fingerprints and their expiry.
	ClearCodes(ctx context.Context, uid string) error
}

type RefreshTokens interface {
	// Create stores a new refresh token record.
	Create(ctx context.Context, t domain.RefreshToken) error

	// GetByHash returns the record for a token fingerprint, revoked or not.
	GetByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// Revoke marks a token revoked. It reports whether a live row was
	// actually flipped; false means another caller got there first, which
	// rotation treats as replay.
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)

	// RevokeAllForUser bulk-revokes every live token a user holds and
	// returns how many were hit. Used on theft detection and logout-all.
	RevokeAllForUser(ctx context.Context, userID int64, at time.Time) (int64, error)

	// RevokeAllForSession revokes the chain backing one session.
	RevokeAllForSession(ctx context.Context, sessionID string, at time.Time) error

	// DeleteExpired is housekeeping.
	DeleteExpired(ctx context.Context, now time.Time) error
}

type Lockouts interface {
	// RecordFailedAttempt appends one rejected credential presentation.
	RecordFailedAttempt(ctx context.Context, a domain.FailedLoginAttempt) error

	// CountRecentFailures counts failures for an email since the window start.
	CountRecentFailures(ctx context.Context, email string, since time.Time) (int, error)

	// DeleteFailures clears the failure history after a successful login.
	DeleteFailures(ctx context.Context, email string) error

	// GetLockout returns the lockout row for an email.
	GetLockout(ctx context.Context, email string) (domain.AccountLockout, error)

	// UpsertLockout writes a lockout episode. LockCount must persist across
	// successful logins so episodes keep escalating.
	UpsertLockout(ctx context.Context, l domain.AccountLockout) error

	// ClearLockout lifts the active lock but keeps the episode count.
	ClearLockout(ctx context.Context, email string, at time.Time) error

	// IncrementRateWindow bumps the fixed-window counter for a key,
	// creating the window row if needed, and returns the new count.
	IncrementRateWindow(ctx context.Context, key string, windowStart time.Time) (int, error)

	// DeleteExpiredWindows and DeleteOldFailures are housekeeping.
	DeleteExpiredWindows(ctx context.Context, before time.Time) error
	DeleteOldFailures(ctx context.Context, before time.Time) error
}

type MFA interface {
	// GetSettings returns the per-user factor configuration.
	// Returns ErrNotFound when the user never touched MFA.
	GetSettings(ctx context.Context, userID int64) (domain.MFASettings, error)

	// SetTOTPSecret stores a pending (unconfirmed) TOTP secret.
	SetTOTPSecret(ctx context.Context, userID int64, secret string) error

	// EnableTOTP confirms the pending secret.
	EnableTOTP(ctx context.Context, userID int64) error

	// DisableTOTP clears the secret and the enabled flag.
	DisableTOTP(ctx context.Context, userID int64) error

	// SetSMSPhone stores a pending (unconfirmed) SMS number.
	SetSMSPhone(ctx context.Context, userID int64, phone string) error

	EnableSMS(ctx context.Context, userID int64) error
	DisableSMS(ctx context.Context, userID int64) error

	// ReplaceSMSCode inserts the live SMS code for a user, replacing any
	// previous one. Only one code may be outstanding at a time.
	ReplaceSMSCode(ctx context.Context, c domain.MFASMSCode) error

	GetSMSCode(ctx context.Context, userID int64) (domain.MFASMSCode, error)

	// IncrementSMSCodeAttempts bumps the failed attempt counter and returns
	// the new value.
	IncrementSMSCodeAttempts(ctx context.Context, userID int64) (int, error)

	DeleteSMSCode(ctx context.Context, userID int64) error

	// CreateChallenge opens a pending second-factor gate.
	CreateChallenge(ctx context.Context, ch domain.MFAChallenge) error

	// GetChallenge retrieves a challenge by token (only if not expired).
	GetChallenge(ctx context.Context, token string) (domain.MFAChallenge, error)

	// IncrementChallengeAttempts bumps the failed attempt counter and
	// returns the updated challenge.
	IncrementChallengeAttempts(ctx context.Context, token string) (domain.MFAChallenge, error)

	DeleteChallenge(ctx context.Context, token string) error

	// DeleteExpiredChallenges and DeleteExpiredSMSCodes are housekeeping.
	DeleteExpiredChallenges(ctx context.Context, now time.Time) error
	DeleteExpiredSMSCodes(ctx context.Context, now time.Time) error
}

type BackupCodes interface {
	// Create stores a backup code fingerprint for a user.
	Create(ctx context.Context, userID int64, codeHash string) error

	// Verify checks whether a fingerprint exists for a user.
	Verify(ctx context.Context, userID int64, codeHash string) (bool, error)

	// Delete removes a specific code after use.
	Delete(ctx context.Context, userID int64, codeHash string) error

	// DeleteAll removes all codes for a user (regeneration, disable).
	DeleteAll(ctx context.Context, userID int64) error

	// Count returns how many unused codes a user has left.
	Count(ctx context.Context, userID int64) (int, error)
}

type Sessions interface {
	Create(ctx context.Context, s domain.Session) error
	Get(ctx context.Context, id string) (domain.Session, error)

	// ListActiveForUser returns live sessions, most recent activity first.
	ListActiveForUser(ctx context.Context, userID int64) ([]domain.Session, error)

	// Touch bumps last_activity.
	Touch(ctx context.Context, id string, at time.Time) error

	// Deactivate ends a session. Reports whether the row was live.
	Deactivate(ctx context.Context, id string) (bool, error)

	// DeactivateAllForUser ends every live session, optionally sparing one.
	// Returns how many sessions were ended.
	DeactivateAllForUser(ctx context.Context, userID int64, exceptID string) (int64, error)

	// Stats aggregates a user's session activity.
	Stats(ctx context.Context, userID int64) (domain.SessionStats, error)

	// DeleteExpired is housekeeping.
	DeleteExpired(ctx context.Context, now time.Time) error
}

type Devices interface {
	// Upsert records a device sighting: insert on first contact, bump
	// last_seen after.
	Upsert(ctx context.Context, d domain.DeviceFingerprint) error

	Get(ctx context.Context, userID int64, deviceID string) (domain.DeviceFingerprint, error)

	// ListForUser returns a user's devices, most recently seen first.
	ListForUser(ctx context.Context, userID int64) ([]domain.DeviceFingerprint, error)

	SetTrusted(ctx context.Context, userID int64, deviceID string, trusted bool) error
	Delete(ctx context.Context, userID int64, deviceID string) error
}

type Roles interface {
	GetByID(ctx context.Context, id int64) (domain.Role, error)
	GetByName(ctx context.Context, name string) (domain.Role, error)
	ListAll(ctx context.Context) ([]domain.Role, error)
	Create(ctx context.Context, r domain.Role) error

	// AssignToUser grants a role; assigning an already-held role is a no-op.
	AssignToUser(ctx context.Context, userID, roleID int64) error
	RemoveFromUser(ctx context.Context, userID, roleID int64) error

	// ListForUser returns every role a user holds.
	ListForUser(ctx context.Context, userID int64) ([]domain.Role, error)
}

type Audit interface {
	// Append writes one trail entry. There is deliberately no update or
	// single-row delete.
	Append(ctx context.Context, rec domain.AuditRecord) error

	// ListForUser pages a user's trail, newest first.
	ListForUser(ctx context.Context, userID int64, limit, offset int) ([]domain.AuditRecord, error)

	// ListRecent pages the global trail, newest first.
	ListRecent(ctx context.Context, limit, offset int) ([]domain.AuditRecord, error)

	// DeleteOlderThan enforces the retention window.
	DeleteOlderThan(ctx context.Context, before time.Time) error
}

type Compliance interface {
	// RecordConsent appends a consent grant or withdrawal.
	RecordConsent(ctx context.Context, c domain.Consent) error

	// ListConsents returns a user's consent history, newest first.
	ListConsents(ctx context.Context, userID int64) ([]domain.Consent, error)

	CreateExportRequest(ctx context.Context, r domain.DataExportRequest) error
	GetExportRequest(ctx context.Context, id int64) (domain.DataExportRequest, error)
	UpdateExportStatus(ctx context.Context, id int64, status string) error
}
