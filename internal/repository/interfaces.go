package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/recordvault/access-api/internal/model"
)

// All repository interfaces in one file
type (
	// RecordRepository owns record metadata: owner, category and the
	// emergency visibility flag. Content bytes are out of scope.
	RecordRepository interface {
		Create(ctx context.Context, record *model.Record) error
		Get(ctx context.Context, id uuid.UUID) (*model.Record, error)
		ListByOwner(ctx context.Context, ownerID uuid.UUID, categories []model.Category) ([]*model.Record, error)
	}

	// GrantRepository is the permission store. Rows are append-only; revoke
	// flips the flag on every matching row for a record, never deletes.
	GrantRepository interface {
		Insert(ctx context.Context, grant *model.Grant) error
		RevokeForRecord(ctx context.Context, recordID, granteeID uuid.UUID, at time.Time) (int64, error)
		ActiveGrant(ctx context.Context, recordID, granteeID uuid.UUID, now time.Time) (*model.ActiveGrant, error)
		HasAnyGrant(ctx context.Context, recordID, granteeID uuid.UUID) (bool, error)
		ListActiveGrantees(ctx context.Context, recordID uuid.UUID, now time.Time) ([]uuid.UUID, error)
		ListForRecord(ctx context.Context, recordID uuid.UUID) ([]*model.Grant, error)
		RecordsWithActiveGrants(ctx context.Context, ownerID, granteeID uuid.UUID, now time.Time) ([]uuid.UUID, error)
	}

	// AccessRequestRepository persists the request workflow. A partial unique
	// index enforces at most one pending request per (requester, owner) pair.
	AccessRequestRepository interface {
		Create(ctx context.Context, req *model.AccessRequest) error
		Get(ctx context.Context, id uuid.UUID) (*model.AccessRequest, error)
		PendingExists(ctx context.Context, requesterID, ownerID uuid.UUID) (bool, error)
		UpdatePending(ctx context.Context, req *model.AccessRequest) (bool, error)
		Respond(ctx context.Context, req *model.AccessRequest) (bool, error)
		DeletePending(ctx context.Context, id uuid.UUID) (bool, error)
		ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]*model.AccessRequest, error)
		ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.AccessRequest, error)
	}

	// AuditRepository is insert-only. No update or delete statement exists
	// against the audit table anywhere in this codebase.
	AuditRepository interface {
		Insert(ctx context.Context, entry *model.AuditEntry) (int64, error)
		Query(ctx context.Context, filter *model.AuditFilter) ([]*model.AuditEntry, error)
		AggregateStats(ctx context.Context, filter *model.AuditFilter) (*model.AggregateStats, error)
	}

	// OutboxRepository queues notification events for the worker.
	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		FetchPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	}
)
