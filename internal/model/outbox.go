package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusProcessed  OutboxStatus = "PROCESSED"
	OutboxStatusFailed     OutboxStatus = "FAILED"
)

// Notification event types handed to the notification collaborator.
const (
	EventRequestCreated   = "ACCESS_REQUEST_CREATED"
	EventRequestResponded = "ACCESS_REQUEST_RESPONDED"
	EventAccessGranted    = "ACCESS_GRANTED"
	EventAccessRevoked    = "ACCESS_REVOKED"
)

// OutboxEvent is a pending notification. Notification delivery never
// influences workflow correctness; failures are retried by the worker.
type OutboxEvent struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	EventType    string          `json:"event_type" db:"event_type"`
	Payload      json.RawMessage `json:"payload" db:"payload"`
	Status       OutboxStatus    `json:"status" db:"status"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}
