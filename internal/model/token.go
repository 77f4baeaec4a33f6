package model

import (
	"time"

	"github.com/google/uuid"
)

// EmergencyToken is a stateless signed credential scoped to one owner's
// emergency-visible records. Verified by signature and expiry alone; nothing
// is persisted at issuance, so individual tokens cannot be revoked early.
// Rotating the signing key invalidates all outstanding tokens at once.
type EmergencyToken struct {
	Token     string    `json:"token"`
	OwnerID   uuid.UUID `json:"owner_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
