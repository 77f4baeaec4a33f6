package model

import (
	"time"

	"github.com/google/uuid"
)

// AccessLevel is the closed set of grant levels.
type AccessLevel string

const (
	AccessLevelRead  AccessLevel = "read"
	AccessLevelWrite AccessLevel = "write"
)

func (l AccessLevel) Valid() bool {
	return l == AccessLevelRead || l == AccessLevelWrite
}

// Satisfies reports whether a granted level covers the required one.
func (l AccessLevel) Satisfies(required AccessLevel) bool {
	if l == AccessLevelWrite {
		return true
	}
	return required == AccessLevelRead
}

// Grant links a grantee to a record at an access level for a validity window.
// Grants are append-only: renewals add rows, revocation flips the flag on every
// matching row, nothing is deleted.
type Grant struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	RecordID  uuid.UUID   `json:"record_id" db:"record_id"`
	OwnerID   uuid.UUID   `json:"owner_id" db:"owner_id"`
	GranteeID uuid.UUID   `json:"grantee_id" db:"grantee_id"`
	Level     AccessLevel `json:"level" db:"level"`
	GrantedAt time.Time   `json:"granted_at" db:"granted_at"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty" db:"expires_at"`
	Revoked   bool        `json:"revoked" db:"revoked"`
	RevokedAt *time.Time  `json:"revoked_at,omitempty" db:"revoked_at"`
}

// Active reports whether the grant authorizes access at the given instant.
// Recomputed at read time; there is no background expiry sweep.
func (g *Grant) Active(now time.Time) bool {
	return !g.Revoked && (g.ExpiresAt == nil || g.ExpiresAt.After(now))
}

// ActiveGrant is the effective permission for a (record, grantee) pair: the
// most permissive level among all currently active grants.
type ActiveGrant struct {
	Level     AccessLevel `json:"level" db:"level"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty" db:"expires_at"`
}

// RecordFailure tags one record of a bulk operation that could not be updated.
type RecordFailure struct {
	RecordID uuid.UUID `json:"record_id"`
	Reason   string    `json:"reason"`
}

// RevocationResult reports how far a multi-record revoke got. Revocation is not
// atomic across records; callers retry until Failures is empty.
type RevocationResult struct {
	Affected int             `json:"affected"`
	Failures []RecordFailure `json:"failures,omitempty"`
}
