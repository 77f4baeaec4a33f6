package model

import "github.com/google/uuid"

// Role classifies every caller of the subsystem. Identities are supplied by the
// authentication collaborator; no credential verification happens here.
type Role string

const (
	RoleOwner         Role = "owner"
	RoleProfessional  Role = "professional"
	RoleResponder     Role = "responder"
	RoleAdministrator Role = "administrator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleProfessional, RoleResponder, RoleAdministrator:
		return true
	}
	return false
}

// Identity is the already-authenticated caller.
type Identity struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}
