package model

import (
	"time"

	"github.com/google/uuid"
)

type Urgency string

const (
	UrgencyRoutine   Urgency = "routine"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyRoutine, UrgencyUrgent, UrgencyEmergency:
		return true
	}
	return false
}

// RequestStatus is the access request lifecycle: pending is the only
// non-terminal state.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusDenied   RequestStatus = "denied"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusDenied:
		return true
	}
	return false
}

// Decision is the owner's response to a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionDeny
}

// AccessRequest is a professional's petition for access to an owner's records.
// At most one pending request may exist per (requester, owner) pair.
type AccessRequest struct {
	ID                  uuid.UUID     `json:"id" db:"id"`
	RequesterID         uuid.UUID     `json:"requester_id" db:"requester_id"`
	OwnerID             uuid.UUID     `json:"owner_id" db:"owner_id"`
	Reason              string        `json:"reason" db:"reason"`
	RequestedLevel      AccessLevel   `json:"requested_level" db:"requested_level"`
	RequestedCategories []Category    `json:"requested_categories" db:"-"`
	Urgency             Urgency       `json:"urgency" db:"urgency"`
	Status              RequestStatus `json:"status" db:"status"`
	ResponseMessage     *string       `json:"response_message,omitempty" db:"response_message"`
	CreatedAt           time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at" db:"updated_at"`
	RespondedAt         *time.Time    `json:"responded_at,omitempty" db:"responded_at"`
	ExpiresAt           *time.Time    `json:"expires_at,omitempty" db:"expires_at"`
}

// WantsAllCategories reports whether the request covers every record the owner has.
func (r *AccessRequest) WantsAllCategories() bool {
	for _, c := range r.RequestedCategories {
		if c == CategoryAll {
			return true
		}
	}
	return false
}

// GrantOutcome tags one record of an approval fan-out.
type GrantOutcome struct {
	RecordID uuid.UUID  `json:"record_id"`
	GrantID  *uuid.UUID `json:"grant_id,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// RespondResult is the batch outcome of responding to a request. Approval
// fans out into one grant per matching record; failures are per-item and
// retryable, never all-or-nothing.
type RespondResult struct {
	Request  *AccessRequest `json:"request"`
	Outcomes []GrantOutcome `json:"outcomes,omitempty"`
}
