package request

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/repository"
	"github.com/recordvault/access-api/internal/service/audit"
	"github.com/recordvault/access-api/internal/service/event"
	"github.com/recordvault/access-api/internal/service/permission"
	"github.com/recordvault/access-api/pkg/errors"
)

// DefaultApprovalExpiry bounds grants created from an approval when the owner
// does not pick an expiry.
const DefaultApprovalExpiry = 30 * 24 * time.Hour

// Service runs the access request workflow: pending -> approved | denied,
// terminal states. Approval is the only path that turns requests into grants.
type Service struct {
	requests    repository.AccessRequestRepository
	records     repository.RecordRepository
	permissions *permission.Service
	auditor     *audit.Service
	events      *event.Service
	now         func() time.Time
}

func NewService(
	requests repository.AccessRequestRepository,
	records repository.RecordRepository,
	permissions *permission.Service,
	auditor *audit.Service,
	events *event.Service,
) *Service {
	return &Service{
		requests:    requests,
		records:     records,
		permissions: permissions,
		auditor:     auditor,
		events:      events,
		now:         time.Now,
	}
}

// CreateInput is a professional's petition for access.
type CreateInput struct {
	RequesterID uuid.UUID
	OwnerID     uuid.UUID
	Reason      string
	Level       model.AccessLevel
	Categories  []model.Category
	Urgency     model.Urgency
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*model.AccessRequest, error) {
	if err := validateRequestFields(in.Level, in.Categories, in.Urgency); err != nil {
		return nil, err
	}
	if in.RequesterID == in.OwnerID {
		return nil, errors.BadRequest("cannot request access to your own records", nil)
	}

	exists, err := s.requests.PendingExists(ctx, in.RequesterID, in.OwnerID)
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	if exists {
		return nil, errors.DuplicateRequest("a pending request for this owner already exists")
	}

	now := s.now()
	req := &model.AccessRequest{
		ID:                  uuid.New(),
		RequesterID:         in.RequesterID,
		OwnerID:             in.OwnerID,
		Reason:              in.Reason,
		RequestedLevel:      in.Level,
		RequestedCategories: in.Categories,
		Urgency:             in.Urgency,
		Status:              model.RequestStatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, errors.StoreUnavailable(err)
	}

	s.events.RequestCreated(ctx, req)
	return req, nil
}

// EditInput rewrites the negotiable fields of a pending request.
type EditInput struct {
	Reason     string
	Level      model.AccessLevel
	Categories []model.Category
	Urgency    model.Urgency
}

func (s *Service) Edit(ctx context.Context, requestID, requesterID uuid.UUID, in EditInput) (*model.AccessRequest, error) {
	if err := validateRequestFields(in.Level, in.Categories, in.Urgency); err != nil {
		return nil, err
	}

	req, err := s.get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != requesterID {
		return nil, errors.Forbidden("only the requester may edit a request")
	}
	if req.Status != model.RequestStatusPending {
		return nil, errors.InvalidState("only pending requests may be edited")
	}

	req.Reason = in.Reason
	req.RequestedLevel = in.Level
	req.RequestedCategories = in.Categories
	req.Urgency = in.Urgency
	req.UpdatedAt = s.now()

	updated, err := s.requests.UpdatePending(ctx, req)
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	if !updated {
		return nil, errors.InvalidState("request is no longer pending")
	}
	return req, nil
}

func (s *Service) Withdraw(ctx context.Context, requestID, requesterID uuid.UUID) error {
	req, err := s.get(ctx, requestID)
	if err != nil {
		return err
	}
	if req.RequesterID != requesterID {
		return errors.Forbidden("only the requester may withdraw a request")
	}
	if req.Status != model.RequestStatusPending {
		return errors.InvalidState("only pending requests may be withdrawn")
	}

	deleted, err := s.requests.DeletePending(ctx, requestID)
	if err != nil {
		return errors.StoreUnavailable(err)
	}
	if !deleted {
		return errors.InvalidState("request is no longer pending")
	}
	return nil
}

// RespondInput is the owner's single-shot decision on a pending request.
type RespondInput struct {
	Decision model.Decision
	// ExpiresAt bounds the created grants; nil means the 30 day default.
	ExpiresAt *time.Time
	Message   string
	Origin    model.Origin
}

// Respond transitions the request exactly once. An expired-but-pending request
// can still be responded to: explicit owner action always wins. On approval it
// fans out into one grant per matching record, each audited, each independently
// retryable; there is no cross-record atomicity.
func (s *Service) Respond(ctx context.Context, requestID, ownerID uuid.UUID, in RespondInput) (*model.RespondResult, error) {
	if !in.Decision.Valid() {
		return nil, errors.BadRequest("invalid decision", nil)
	}

	req, err := s.get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.OwnerID != ownerID {
		return nil, errors.Forbidden("only the record owner may respond to this request")
	}
	if req.Status != model.RequestStatusPending {
		return nil, errors.InvalidState("request has already been responded to")
	}

	now := s.now()
	req.RespondedAt = &now
	req.UpdatedAt = now
	if in.Message != "" {
		req.ResponseMessage = &in.Message
	}

	if in.Decision == model.DecisionApprove {
		req.Status = model.RequestStatusApproved
		expiresAt := now.Add(DefaultApprovalExpiry)
		if in.ExpiresAt != nil {
			expiresAt = *in.ExpiresAt
		}
		req.ExpiresAt = &expiresAt
	} else {
		req.Status = model.RequestStatusDenied
	}

	responded, err := s.requests.Respond(ctx, req)
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	if !responded {
		return nil, errors.InvalidState("request has already been responded to")
	}

	result := &model.RespondResult{Request: req}

	if req.Status == model.RequestStatusApproved {
		outcomes, fanoutErr := s.fanOutGrants(ctx, req, in.Origin)
		result.Outcomes = outcomes
		if fanoutErr != nil {
			s.events.RequestResponded(ctx, req)
			return result, fanoutErr
		}
	}

	s.events.RequestResponded(ctx, req)
	return result, nil
}

// fanOutGrants creates one grant per record matching the requested categories.
// Each record is handled independently so a transient fault leaves a partial,
// retryable outcome rather than an all-or-nothing failure.
func (s *Service) fanOutGrants(ctx context.Context, req *model.AccessRequest, origin model.Origin) ([]model.GrantOutcome, error) {
	var categories []model.Category
	if !req.WantsAllCategories() {
		categories = req.RequestedCategories
	}

	records, err := s.records.ListByOwner(ctx, req.OwnerID, categories)
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}

	outcomes := make([]model.GrantOutcome, 0, len(records))
	var failures []errors.RecordFailure
	affected := 0

	for _, record := range records {
		outcome := model.GrantOutcome{RecordID: record.ID}

		grant, err := s.permissions.GrantUntil(ctx, record.ID, req.OwnerID, req.RequesterID, req.RequestedLevel, req.ExpiresAt)
		if err != nil {
			outcome.Error = err.Error()
			outcomes = append(outcomes, outcome)
			failures = append(failures, errors.RecordFailure{RecordID: record.ID, Reason: err.Error()})
			continue
		}
		outcome.GrantID = &grant.ID

		recordID := record.ID
		_, err = s.auditor.Append(ctx, req.OwnerID, req.RequesterID, model.AccessTypeGrant, &audit.EntryOptions{
			RecordID: &recordID,
			Reason:   req.Reason,
			Origin:   origin,
			Metadata: map[string]interface{}{
				"request_id": req.ID,
				"grant_id":   grant.ID,
				"level":      req.RequestedLevel,
			},
		})
		if err != nil {
			outcome.Error = err.Error()
			outcomes = append(outcomes, outcome)
			failures = append(failures, errors.RecordFailure{RecordID: record.ID, Reason: err.Error()})
			continue
		}

		s.events.AccessGranted(ctx, req.OwnerID, req.RequesterID, record.ID)
		outcomes = append(outcomes, outcome)
		affected++
	}

	if len(failures) > 0 {
		return outcomes, errors.PartialFailure(affected, failures)
	}
	return outcomes, nil
}

func (s *Service) Get(ctx context.Context, requestID uuid.UUID) (*model.AccessRequest, error) {
	return s.get(ctx, requestID)
}

func (s *Service) ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]*model.AccessRequest, error) {
	requests, err := s.requests.ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	return requests, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.AccessRequest, error) {
	requests, err := s.requests.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	return requests, nil
}

func (s *Service) get(ctx context.Context, requestID uuid.UUID) (*model.AccessRequest, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("access request", err)
		}
		return nil, errors.StoreUnavailable(err)
	}
	return req, nil
}

func validateRequestFields(level model.AccessLevel, categories []model.Category, urgency model.Urgency) error {
	if !level.Valid() {
		return errors.BadRequest("invalid access level", nil)
	}
	if !urgency.Valid() {
		return errors.BadRequest("invalid urgency", nil)
	}
	if len(categories) == 0 {
		return errors.BadRequest("at least one category is required", nil)
	}
	for _, c := range categories {
		if !c.ValidRequested() {
			return errors.BadRequest("invalid category", nil)
		}
	}
	return nil
}
