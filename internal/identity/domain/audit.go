package domain

import "time"

// Compliance levels for audit records.
const (
	ComplianceStandard = "standard"
	ComplianceSecurity = "security"
	ComplianceHIPAA    = "hipaa"
)

// AuditRecord is an append-only trail entry. The application never mutates
// or deletes these rows.
type AuditRecord struct {
	ID              int64      `json:"id,string"`
	UserID          *int64     `json:"userId,omitempty,string"`
	Action          string     `json:"action"`
	Resource        string     `json:"resource"`
	OldValues       string     `json:"oldValues,omitempty"` // JSON
	NewValues       string     `json:"newValues,omitempty"` // JSON
	IP              string     `json:"ip"`
	UserAgent       string     `json:"userAgent"`
	ComplianceLevel string     `json:"complianceLevel"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Consent records a user's grant or withdrawal of a consent type.
type Consent struct {
	ID          int64     `json:"id,string"`
	UserID      int64     `json:"userId,string"`
	ConsentType string    `json:"consentType"`
	Granted     bool      `json:"granted"`
	IP          string    `json:"ip"`
	GrantedAt   time.Time `json:"grantedAt"`
}

// DataExportRequest tracks a user's request for an export of their data.
type DataExportRequest struct {
	ID          int64     `json:"id,string"`
	UserID      int64     `json:"userId,string"`
	Status      string    `json:"status"` // pending, processing, completed
	RequestedAt time.Time `json:"requestedAt"`
}
