package domain

import "time"

// FailedLoginAttempt is a single rejected credential presentation. Rows are
// purged by housekeeping once they age out of the counting window.
type FailedLoginAttempt struct {
	ID          int64
	Email       string
	IP          string
	UserAgent   string
	Reason      string
	AttemptedAt time.Time
}

// AccountLockout tracks the lockout state for an identity. LockCount is the
// number of lockout episodes the identity has accumulated and never resets;
// it drives the escalating duration of the next episode.
type AccountLockout struct {
	Email       string
	LockedUntil time.Time
	LockCount   int
	UpdatedAt   time.Time
}

// Locked reports whether the lockout is currently in force.
func (l AccountLockout) Locked(now time.Time) bool {
	return now.Before(l.LockedUntil)
}

// RateWindow is a fixed-window request counter keyed by
// (identity-or-anonymous, action, IP).
type RateWindow struct {
	Key         string
	WindowStart time.Time
	Count       int
}
