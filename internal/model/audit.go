package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AccessType is the closed set of audited actions.
type AccessType string

const (
	AccessTypeView      AccessType = "view"
	AccessTypeDownload  AccessType = "download"
	AccessTypeGrant     AccessType = "grant"
	AccessTypeRevoke    AccessType = "revoke"
	AccessTypeEmergency AccessType = "emergency-access"
	AccessTypeQR        AccessType = "qr-access"
)

func (t AccessType) Valid() bool {
	switch t {
	case AccessTypeView, AccessTypeDownload, AccessTypeGrant,
		AccessTypeRevoke, AccessTypeEmergency, AccessTypeQR:
		return true
	}
	return false
}

// RequiredLevel maps an audited action to the grant level it needs.
func (t AccessType) RequiredLevel() AccessLevel {
	switch t {
	case AccessTypeView, AccessTypeDownload, AccessTypeQR, AccessTypeEmergency:
		return AccessLevelRead
	default:
		return AccessLevelWrite
	}
}

// DenyReason distinguishes denials in the audit trail. Callers see a uniform
// "access denied"; the reason is for audit and debugging only.
type DenyReason string

const (
	DenyReasonNone            DenyReason = ""
	DenyReasonRecordNotFound  DenyReason = "record_not_found"
	DenyReasonNoGrant         DenyReason = "no_grant"
	DenyReasonGrantExpired    DenyReason = "grant_expired"
	DenyReasonLevel           DenyReason = "insufficient_level"
	DenyReasonTokenExpired    DenyReason = "token_expired"
	DenyReasonTokenInvalid    DenyReason = "token_invalid"
	DenyReasonTokenWrongOwner DenyReason = "token_wrong_owner"
	DenyReasonNotEmergency    DenyReason = "not_emergency_visible"
)

// AuditEntry is one row of the append-only audit log. Entries are never
// updated or deleted; corrections are appended as compensating entries.
// The numeric ID is assigned by the store and increases monotonically.
type AuditEntry struct {
	ID         int64           `json:"id" db:"id"`
	OwnerID    uuid.UUID       `json:"owner_id" db:"owner_id"`
	AccessorID uuid.UUID       `json:"accessor_id" db:"accessor_id"`
	RecordID   *uuid.UUID      `json:"record_id,omitempty" db:"record_id"`
	AccessType AccessType      `json:"access_type" db:"access_type"`
	Reason     string          `json:"reason" db:"reason"`
	Denied     bool            `json:"denied" db:"denied"`
	DenyReason DenyReason      `json:"deny_reason,omitempty" db:"deny_reason"`
	IPAddress  string          `json:"ip_address" db:"ip_address"`
	UserAgent  string          `json:"user_agent" db:"user_agent"`
	Metadata   json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// AuditFilter narrows an audit query. AfterID is a keyset cursor over the
// monotonic entry id, so re-running the same query is restartable.
type AuditFilter struct {
	OwnerID    *uuid.UUID `json:"owner_id,omitempty" form:"owner_id"`
	AccessorID *uuid.UUID `json:"accessor_id,omitempty" form:"accessor_id"`
	RecordID   *uuid.UUID `json:"record_id,omitempty" form:"record_id"`
	From       *time.Time `json:"from,omitempty" form:"from"`
	To         *time.Time `json:"to,omitempty" form:"to"`
	DeniedOnly bool       `json:"denied_only,omitempty" form:"denied_only"`
	AfterID    int64      `json:"after_id,omitempty" form:"after_id"`
	Limit      int        `json:"limit,omitempty" form:"limit"`
}

// AggregateStats summarizes audit activity for the reporting endpoint.
type AggregateStats struct {
	TotalEntries int64          `json:"total_entries"`
	DeniedCount  int64          `json:"denied_count"`
	TypeCounts   map[string]int `json:"type_counts"`
	ReasonCounts map[string]int `json:"reason_counts"`
}
