package http

import (
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
)

// userView is the wire shape of a user. Internal columns (counters, audit
// timestamps) stay off the wire.
type userView struct {
	ID            int64      `json:"id,string"`
	Email         string     `json:"email"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Role          string     `json:"role"`
	Status        string     `json:"status"`
	AuthProvider  string     `json:"authProvider"`
	EmailVerified bool       `json:"emailVerified"`
	PhoneVerified bool       `json:"phoneVerified"`
	MFAEnabled    bool       `json:"mfaEnabled"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func toUserView(u domain.User) userView {
	return userView{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Role:          u.Role,
		Status:        string(u.Status),
		AuthProvider:  u.CurrentAuthProvider,
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
		MFAEnabled:    u.MFAEnabled,
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
	}
}

type sessionView struct {
	ID           string    `json:"id"`
	DeviceID     string    `json:"deviceId"`
	IP           string    `json:"ip"`
	UserAgent    string    `json:"userAgent"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	ExpiresAt    time.Time `json:"expiresAt"`
	RememberMe   bool      `json:"rememberMe"`
	Current      bool      `json:"current"`
}

func toSessionView(s domain.Session, currentID string) sessionView {
	return sessionView{
		ID:           s.ID,
		DeviceID:     s.DeviceID,
		IP:           s.IP,
		UserAgent:    s.UserAgent,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		ExpiresAt:    s.ExpiresAt,
		RememberMe:   s.RememberMe,
		Current:      s.ID == currentID,
	}
}

type deviceView struct {
	DeviceID  string    `json:"deviceId"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
	IsTrusted bool      `json:"isTrusted"`
}

func toDeviceView(d domain.DeviceFingerprint) deviceView {
	return deviceView{
		DeviceID:  d.DeviceID,
		FirstSeen: d.FirstSeen,
		LastSeen:  d.LastSeen,
		IsTrusted: d.IsTrusted,
	}
}

type providerView struct {
	ProviderType string    `json:"providerType"`
	IsPrimary    bool      `json:"isPrimary"`
	LinkedAt     time.Time `json:"linkedAt"`
}

func toProviderView(m domain.ProviderMapping) providerView {
	return providerView{
		ProviderType: m.ProviderType,
		IsPrimary:    m.IsPrimary,
		LinkedAt:     m.CreatedAt,
	}
}

type roleView struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func toRoleView(r domain.Role) roleView {
	return roleView{Name: r.Name, Permissions: r.Permissions}
}
