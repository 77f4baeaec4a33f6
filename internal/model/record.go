package model

import (
	"github.com/google/uuid"
)

// Category is the closed set of record categories. CategoryAll is only legal in
// access requests, never on a stored record.
type Category string

const (
	CategoryLabResults    Category = "lab-results"
	CategoryPrescriptions Category = "prescriptions"
	CategoryImaging       Category = "imaging"
	CategoryConditions    Category = "conditions"
	CategoryImmunizations Category = "immunizations"
	CategoryDocuments     Category = "documents"
	CategoryAll           Category = "all"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryLabResults, CategoryPrescriptions, CategoryImaging,
		CategoryConditions, CategoryImmunizations, CategoryDocuments:
		return true
	}
	return false
}

// ValidRequested reports whether the category may appear in an access request.
func (c Category) ValidRequested() bool {
	return c == CategoryAll || c.Valid()
}

// Record is the metadata the subsystem owns about a personal record. Content
// bytes live with the record storage collaborator.
type Record struct {
	Base
	OwnerID          uuid.UUID `json:"owner_id" db:"owner_id"`
	Category         Category  `json:"category" db:"category"`
	Title            string    `json:"title" db:"title"`
	EmergencyVisible bool      `json:"emergency_visible" db:"emergency_visible"`
}
