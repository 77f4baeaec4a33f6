package gateway

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/service/audit"
	"github.com/recordvault/access-api/pkg/errors"
	"github.com/recordvault/access-api/pkg/metrics"
)

// RecordStore resolves record metadata.
type RecordStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Record, error)
}

// PermissionChecker reads the permission store. The gateway only ever reads;
// grants and revocations happen out-of-band through the workflow.
type PermissionChecker interface {
	IsActive(ctx context.Context, recordID, granteeID uuid.UUID) (*model.ActiveGrant, error)
	HadGrant(ctx context.Context, recordID, granteeID uuid.UUID) (bool, error)
}

// TokenVerifier validates emergency tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (uuid.UUID, error)
	Fingerprint(token string) string
}

// Auditor appends to the audit log.
type Auditor interface {
	Append(ctx context.Context, ownerID, accessorID uuid.UUID, accessType model.AccessType, opts *audit.EntryOptions) (int64, error)
}

// Service is the single choke point for record access. Every decision,
// including denials, is appended to the audit log before it is returned;
// if the log cannot be written the access is denied outright.
type Service struct {
	records     RecordStore
	permissions PermissionChecker
	tokens      TokenVerifier
	auditor     Auditor
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewService(records RecordStore, permissions PermissionChecker, tokens TokenVerifier, auditor Auditor, m *metrics.Metrics) *Service {
	return &Service{
		records:     records,
		permissions: permissions,
		tokens:      tokens,
		auditor:     auditor,
		metrics:     m,
		now:         time.Now,
	}
}

// Input is one access attempt.
type Input struct {
	AccessorID     uuid.UUID
	RecordID       uuid.UUID
	AccessType     model.AccessType
	Reason         string
	EmergencyToken string
	Origin         model.Origin
}

// Decision is the audited outcome of an access attempt. DenyReason is for the
// audit trail; transports present a uniform "access denied" to callers.
type Decision struct {
	Allowed      bool              `json:"allowed"`
	Level        model.AccessLevel `json:"level,omitempty"`
	DenyReason   model.DenyReason  `json:"-"`
	AuditEntryID int64             `json:"audit_entry_id"`
	DecidedAt    time.Time         `json:"decided_at"`
}

// Authorize decides one access attempt:
// owners pass at write level, emergency tokens grant read on emergency-visible
// records only, everyone else needs an active grant covering the action.
// Permission store or audit log faults fail the call closed.
func (s *Service) Authorize(ctx context.Context, in Input) (*Decision, error) {
	if !in.AccessType.Valid() {
		return nil, errors.BadRequest("invalid access type", nil)
	}

	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.AuthorizeLatency)
		defer timer.ObserveDuration()
	}

	record, err := s.records.Get(ctx, in.RecordID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return s.finish(ctx, in, uuid.Nil, in.AccessType, &Decision{
				DenyReason: model.DenyReasonRecordNotFound,
			}, nil)
		}
		return nil, errors.StoreUnavailable(err)
	}

	// Owners always pass at write level; no grant lookup needed.
	if in.AccessorID == record.OwnerID {
		return s.finish(ctx, in, record.OwnerID, in.AccessType, &Decision{
			Allowed: true,
			Level:   model.AccessLevelWrite,
		}, nil)
	}

	if in.EmergencyToken != "" {
		decision, metadata := s.decideEmergency(ctx, in, record)
		return s.finish(ctx, in, record.OwnerID, model.AccessTypeEmergency, decision, metadata)
	}

	decision, err := s.decideGrant(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, in, record.OwnerID, in.AccessType, decision, nil)
}

// decideEmergency evaluates the bypass path. Verification failure is an
// ordinary denial, never a fatal error; expired and invalid tokens stay
// distinct in the audit trail.
func (s *Service) decideEmergency(ctx context.Context, in Input, record *model.Record) (*Decision, map[string]interface{}) {
	metadata := map[string]interface{}{
		"token_fingerprint": s.tokens.Fingerprint(in.EmergencyToken),
	}

	tokenOwner, err := s.tokens.Verify(ctx, in.EmergencyToken)
	if err != nil {
		reason := model.DenyReasonTokenInvalid
		if errors.IsCode(err, errors.ErrExpired) {
			reason = model.DenyReasonTokenExpired
		}
		s.countVerification(string(reason))
		return &Decision{DenyReason: reason}, metadata
	}
	s.countVerification("ok")

	if tokenOwner != record.OwnerID {
		return &Decision{DenyReason: model.DenyReasonTokenWrongOwner}, metadata
	}
	if !record.EmergencyVisible {
		return &Decision{DenyReason: model.DenyReasonNotEmergency}, metadata
	}
	// Emergency access is an implicit read grant, nothing more.
	if !model.AccessLevelRead.Satisfies(in.AccessType.RequiredLevel()) {
		return &Decision{DenyReason: model.DenyReasonLevel}, metadata
	}

	return &Decision{Allowed: true, Level: model.AccessLevelRead}, metadata
}

func (s *Service) countVerification(result string) {
	if s.metrics != nil {
		s.metrics.TokenVerifications.WithLabelValues(result).Inc()
	}
}

func (s *Service) decideGrant(ctx context.Context, in Input) (*Decision, error) {
	active, err := s.permissions.IsActive(ctx, in.RecordID, in.AccessorID)
	if err != nil {
		// Fail closed: an unknown permission state must never allow.
		return nil, err
	}

	if active == nil {
		reason := model.DenyReasonNoGrant
		if had, err := s.permissions.HadGrant(ctx, in.RecordID, in.AccessorID); err == nil && had {
			reason = model.DenyReasonGrantExpired
		}
		return &Decision{DenyReason: reason}, nil
	}

	if !active.Level.Satisfies(in.AccessType.RequiredLevel()) {
		return &Decision{DenyReason: model.DenyReasonLevel}, nil
	}
	return &Decision{Allowed: true, Level: active.Level}, nil
}

// finish appends the audit entry and only then releases the decision.
// An unwritable audit log turns any outcome into a closed failure.
func (s *Service) finish(ctx context.Context, in Input, ownerID uuid.UUID, accessType model.AccessType, decision *Decision, metadata map[string]interface{}) (*Decision, error) {
	recordID := in.RecordID
	opts := &audit.EntryOptions{
		RecordID:   &recordID,
		Reason:     in.Reason,
		Origin:     in.Origin,
		Denied:     !decision.Allowed,
		DenyReason: decision.DenyReason,
	}
	if len(metadata) > 0 {
		opts.Metadata = metadata
	}

	entryID, err := s.auditor.Append(ctx, ownerID, in.AccessorID, accessType, opts)
	if err != nil {
		return nil, err
	}
	decision.AuditEntryID = entryID
	decision.DecidedAt = s.now()

	if s.metrics != nil {
		outcome := "allowed"
		if !decision.Allowed {
			outcome = "denied"
		}
		s.metrics.AuthorizeDecisions.WithLabelValues(outcome, string(decision.DenyReason)).Inc()
	}
	return decision, nil
}
