package domain

import "time"

// MFASettings is the per-user multi-factor configuration. A factor moves
// NotSetup -> PendingVerification -> Enabled; "pending" is a stored secret or
// phone with its enabled flag still false.
type MFASettings struct {
	UserID     int64
	TOTPSecret string // base32, empty when TOTP was never set up
	TOTPEnabled bool
	SMSPhone   string
	SMSEnabled bool
	UpdatedAt  time.Time
}

// TOTPPending reports whether a secret was issued but never confirmed.
func (s MFASettings) TOTPPending() bool { return s.TOTPSecret != "" && !s.TOTPEnabled }

// SMSPending reports whether a phone was registered but never confirmed.
func (s MFASettings) SMSPending() bool { return s.SMSPhone != "" && !s.SMSEnabled }

// AnyEnabled reports whether at least one factor is fully enabled.
func (s MFASettings) AnyEnabled() bool { return s.TOTPEnabled || s.SMSEnabled }

// MFASMSCode is the single live SMS code for a user. Sending a new code
// replaces the previous row.
type MFASMSCode struct {
	UserID    int64
	CodeHash  string
	ExpiresAt time.Time
	Attempts  int
	CreatedAt time.Time
}

// MFAChallenge is a pending second-factor gate created after a correct
// password or verified federated token. No tokens are issued until the
// challenge is completed; Attempts caps brute force.
type MFAChallenge struct {
	ID         string // ULID, the opaque mfaToken handed to the client
	UserID     int64
	Provider   string // provider type that verified the first factor
	SessionID  string
	DeviceID   string
	IP         string
	UserAgent  string
	RememberMe bool
	Attempts   int
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// MFAChallengeResponse is returned in place of tokens when MFA gates a login.
type MFAChallengeResponse struct {
	RequiresMFA bool     `json:"requiresMFA"` // always true
	UserID      int64    `json:"userId,string"`
	MFAToken    string   `json:"mfaToken"`
	Methods     []string `json:"methods"` // e.g. ["totp", "sms", "backup_codes"]
}

// MFAEnrollResponse carries a freshly issued TOTP secret back to the client.
type MFAEnrollResponse struct {
	Secret  string `json:"secret"`  // base32 secret
	QRCode  string `json:"qrCode"`  // otpauth:// URL
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}

// MFAStatus is the read-only view of a user's factors.
type MFAStatus struct {
	Enabled          bool   `json:"enabled"`
	TOTPEnabled      bool   `json:"totpEnabled"`
	TOTPPending      bool   `json:"totpPending"`
	SMSEnabled       bool   `json:"smsEnabled"`
	SMSPending       bool   `json:"smsPending"`
	SMSPhone         string `json:"smsPhone,omitempty"` // masked
	BackupCodesLeft  int    `json:"backupCodesLeft"`
}
