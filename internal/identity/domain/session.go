package domain

import "time"

// Session is a human-facing "this device is logged in" record, tracked
// separately from the refresh-token chain that backs it.
type Session struct {
	ID           string // UUID
	UserID       int64
	DeviceID     string // UUID, stable per device fingerprint
	IP           string
	UserAgent    string
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
	IsActive     bool
	RememberMe   bool
}

// DeviceFingerprint identifies a device a user has logged in from.
type DeviceFingerprint struct {
	ID              int64
	UserID          int64
	DeviceID        string // UUID
	FingerprintHash string // base64url SHA-256 over user agent, IP and client identifiers
	FirstSeen       time.Time
	LastSeen        time.Time
	IsTrusted       bool
}

// DeviceInfo is the client-supplied device context on a login or refresh.
type DeviceInfo struct {
	IP         string `json:"-"`
	UserAgent  string `json:"-"`
	DeviceName string `json:"deviceName,omitempty"`
	Platform   string `json:"platform,omitempty"`
	AppVersion string `json:"appVersion,omitempty"`
}

// SessionStats aggregates session activity over a window.
type SessionStats struct {
	ActiveSessions  int           `json:"activeSessions"`
	TotalSessions   int           `json:"totalSessions"`
	AverageDuration time.Duration `json:"averageDurationSeconds"`
	UniqueDevices   int           `json:"uniqueDevices"`
}
