package request

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/service/audit"
	"github.com/recordvault/access-api/internal/service/event"
	"github.com/recordvault/access-api/internal/service/permission"
	"github.com/recordvault/access-api/pkg/errors"
)

type fakeRequestRepo struct {
	requests map[uuid.UUID]*model.AccessRequest
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{requests: map[uuid.UUID]*model.AccessRequest{}}
}

func (f *fakeRequestRepo) Create(_ context.Context, req *model.AccessRequest) error {
	copied := *req
	f.requests[req.ID] = &copied
	return nil
}

func (f *fakeRequestRepo) Get(_ context.Context, id uuid.UUID) (*model.AccessRequest, error) {
	req, ok := f.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *req
	return &copied, nil
}

func (f *fakeRequestRepo) PendingExists(_ context.Context, requesterID, ownerID uuid.UUID) (bool, error) {
	for _, req := range f.requests {
		if req.RequesterID == requesterID && req.OwnerID == ownerID && req.Status == model.RequestStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRequestRepo) UpdatePending(_ context.Context, req *model.AccessRequest) (bool, error) {
	stored, ok := f.requests[req.ID]
	if !ok || stored.Status != model.RequestStatusPending {
		return false, nil
	}
	copied := *req
	f.requests[req.ID] = &copied
	return true, nil
}

func (f *fakeRequestRepo) Respond(_ context.Context, req *model.AccessRequest) (bool, error) {
	stored, ok := f.requests[req.ID]
	if !ok || stored.Status != model.RequestStatusPending {
		return false, nil
	}
	copied := *req
	f.requests[req.ID] = &copied
	return true, nil
}

func (f *fakeRequestRepo) DeletePending(_ context.Context, id uuid.UUID) (bool, error) {
	stored, ok := f.requests[id]
	if !ok || stored.Status != model.RequestStatusPending {
		return false, nil
	}
	delete(f.requests, id)
	return true, nil
}

func (f *fakeRequestRepo) ListByRequester(_ context.Context, requesterID uuid.UUID) ([]*model.AccessRequest, error) {
	var out []*model.AccessRequest
	for _, req := range f.requests {
		if req.RequesterID == requesterID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (f *fakeRequestRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*model.AccessRequest, error) {
	var out []*model.AccessRequest
	for _, req := range f.requests {
		if req.OwnerID == ownerID {
			out = append(out, req)
		}
	}
	return out, nil
}

type fakeRecordRepo struct {
	records []*model.Record
}

func (f *fakeRecordRepo) Create(_ context.Context, record *model.Record) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeRecordRepo) Get(_ context.Context, id uuid.UUID) (*model.Record, error) {
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeRecordRepo) ListByOwner(_ context.Context, ownerID uuid.UUID, categories []model.Category) ([]*model.Record, error) {
	var out []*model.Record
	for _, r := range f.records {
		if r.OwnerID != ownerID {
			continue
		}
		if len(categories) == 0 {
			out = append(out, r)
			continue
		}
		for _, c := range categories {
			if r.Category == c {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

type fakeGrantRepo struct {
	grants    []*model.Grant
	insertErr map[uuid.UUID]error
}

func (f *fakeGrantRepo) Insert(_ context.Context, grant *model.Grant) error {
	if err := f.insertErr[grant.RecordID]; err != nil {
		return err
	}
	f.grants = append(f.grants, grant)
	return nil
}

func (f *fakeGrantRepo) RevokeForRecord(_ context.Context, _, _ uuid.UUID, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeGrantRepo) ActiveGrant(_ context.Context, _, _ uuid.UUID, _ time.Time) (*model.ActiveGrant, error) {
	return nil, nil
}

func (f *fakeGrantRepo) HasAnyGrant(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeGrantRepo) ListActiveGrantees(_ context.Context, _ uuid.UUID, _ time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeGrantRepo) ListForRecord(_ context.Context, _ uuid.UUID) ([]*model.Grant, error) {
	return nil, nil
}

func (f *fakeGrantRepo) RecordsWithActiveGrants(_ context.Context, _, _ uuid.UUID, _ time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

type fakeAuditRepo struct {
	entries []*model.AuditEntry
	nextID  int64
}

func (f *fakeAuditRepo) Insert(_ context.Context, entry *model.AuditEntry) (int64, error) {
	f.nextID++
	entry.ID = f.nextID
	f.entries = append(f.entries, entry)
	return f.nextID, nil
}

func (f *fakeAuditRepo) Query(_ context.Context, _ *model.AuditFilter) ([]*model.AuditEntry, error) {
	return f.entries, nil
}

func (f *fakeAuditRepo) AggregateStats(_ context.Context, _ *model.AuditFilter) (*model.AggregateStats, error) {
	return &model.AggregateStats{}, nil
}

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (f *fakeOutboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutboxRepo) FetchPending(_ context.Context, _ int) ([]*model.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeOutboxRepo) MarkProcessed(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeOutboxRepo) MarkFailed(_ context.Context, _ uuid.UUID, _ string) error { return nil }

type fixture struct {
	svc      *Service
	requests *fakeRequestRepo
	records  *fakeRecordRepo
	grants   *fakeGrantRepo
	auditor  *fakeAuditRepo
	outbox   *fakeOutboxRepo
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	requests := newFakeRequestRepo()
	records := &fakeRecordRepo{}
	grants := &fakeGrantRepo{}
	auditRepo := &fakeAuditRepo{}
	outbox := &fakeOutboxRepo{}

	permissions := permission.NewService(grants)
	svc := NewService(requests, records, permissions, audit.NewService(auditRepo, nil), event.NewService(outbox))
	svc.now = func() time.Time { return now }

	return &fixture{
		svc:      svc,
		requests: requests,
		records:  records,
		grants:   grants,
		auditor:  auditRepo,
		outbox:   outbox,
		now:      now,
	}
}

func (f *fixture) addRecord(ownerID uuid.UUID, category model.Category) *model.Record {
	record := &model.Record{
		Base:     model.Base{ID: uuid.New(), CreatedAt: f.now, UpdatedAt: f.now},
		OwnerID:  ownerID,
		Category: category,
	}
	f.records.records = append(f.records.records, record)
	return record
}

func validInput(requesterID, ownerID uuid.UUID) CreateInput {
	return CreateInput{
		RequesterID: requesterID,
		OwnerID:     ownerID,
		Reason:      "follow-up after surgery",
		Level:       model.AccessLevelRead,
		Categories:  []model.Category{model.CategoryLabResults},
		Urgency:     model.UrgencyRoutine,
	}
}

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)
	requester, owner := uuid.New(), uuid.New()

	req, err := f.svc.Create(context.Background(), validInput(requester, owner))
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusPending, req.Status)
	assert.Equal(t, f.now, req.CreatedAt)

	// Creation queues a notification for the owner.
	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, model.EventRequestCreated, f.outbox.events[0].EventType)
}

func TestCreateRejectsSelfRequest(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()

	_, err := f.svc.Create(context.Background(), validInput(id, id))
	assert.True(t, errors.IsCode(err, errors.ErrBadRequest))
}

func TestCreateRejectsDuplicatePending(t *testing.T) {
	f := newFixture(t)
	requester, owner := uuid.New(), uuid.New()

	_, err := f.svc.Create(context.Background(), validInput(requester, owner))
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), validInput(requester, owner))
	assert.True(t, errors.IsCode(err, errors.ErrDuplicateRequest))

	// A request toward a different owner is fine.
	_, err = f.svc.Create(context.Background(), validInput(requester, uuid.New()))
	assert.NoError(t, err)
}

func TestCreateRejectsBadCategory(t *testing.T) {
	f := newFixture(t)
	in := validInput(uuid.New(), uuid.New())
	in.Categories = []model.Category{"genome"}

	_, err := f.svc.Create(context.Background(), in)
	assert.True(t, errors.IsCode(err, errors.ErrBadRequest))
}

func TestEditOnlyByRequesterWhilePending(t *testing.T) {
	f := newFixture(t)
	requester, owner := uuid.New(), uuid.New()

	req, err := f.svc.Create(context.Background(), validInput(requester, owner))
	require.NoError(t, err)

	edit := EditInput{
		Reason:     "expanded scope",
		Level:      model.AccessLevelWrite,
		Categories: []model.Category{model.CategoryAll},
		Urgency:    model.UrgencyUrgent,
	}

	_, err = f.svc.Edit(context.Background(), req.ID, uuid.New(), edit)
	assert.True(t, errors.IsCode(err, errors.ErrForbidden))

	updated, err := f.svc.Edit(context.Background(), req.ID, requester, edit)
	require.NoError(t, err)
	assert.Equal(t, model.AccessLevelWrite, updated.RequestedLevel)

	// Once responded, edits are rejected.
	_, err = f.svc.Respond(context.Background(), req.ID, owner, RespondInput{Decision: model.DecisionDeny})
	require.NoError(t, err)
	_, err = f.svc.Edit(context.Background(), req.ID, requester, edit)
	assert.True(t, errors.IsCode(err, errors.ErrInvalidState))
}

func TestWithdrawOnlyByRequester(t *testing.T) {
	f := newFixture(t)
	requester, owner := uuid.New(), uuid.New()

	req, err := f.svc.Create(context.Background(), validInput(requester, owner))
	require.NoError(t, err)

	err = f.svc.Withdraw(context.Background(), req.ID, owner)
	assert.True(t, errors.IsCode(err, errors.ErrForbidden))

	require.NoError(t, f.svc.Withdraw(context.Background(), req.ID, requester))

	_, err = f.svc.Get(context.Background(), req.ID)
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))
}

func TestRespondDeny(t *testing.T) {
	f := newFixture(t)
	requester, owner := uuid.New(), uuid.New()
	f.addRecord(owner, model.CategoryLabResults)

	req, err := f.svc.Create(context.Background(), validInput(requester, owner))
	require.NoError(t, err)

	result, err := f.svc.Respond(context.Background(), req.ID, owner, RespondInput{
		Decision: model.DecisionDeny,
		Message:  "not comfortable with this",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusDenied, result.Request.Status)
	assert.Empty(t, result.Outcomes)
	assert.Empty(t, f.grants.grants)
}

func TestRespondApproveFansOutGrants(t *testing.T) {
	f := newFixture(t)
	requester, owner := uuid.New(), uuid.New()
	labs := f.addRecord(owner, model.CategoryLabResults)
	f.addRecord(owner, model.CategoryImaging)
	f.addRecord(uuid.New(), model.CategoryLabResults)

	req, err := f.svc.Create(context.Background(), validInput(requester, owner))
	require.NoError(t, err)

	result, err := f.svc.Respond(context.Background(), req.ID, owner, RespondInput{Decision: model.DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusApproved, result.Request.Status)

	// Only the owner's lab-results record matches the requested category.
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, labs.ID, result.Outcomes[0].RecordID)
	require.Len(t, f.grants.grants, 1)

	grant := f.grants.grants[0]
	assert.Equal(t, requester, grant.GranteeID)
	assert.Equal(t, model.AccessLevelRead, grant.Level)
	require.NotNil(t, grant.ExpiresAt)
	assert.Equal(t, f.now.Add(DefaultApprovalExpiry), *grant.ExpiresAt)

	// Every grant is audited.
	require.Len(t, f.auditor.entries, 1)
	assert.Equal(t, model.AccessTypeGrant, f.auditor.entries[0].AccessType)
	assert.False(t, f.auditor.entries[0].Denied)
}

func TestRespondApproveAllCategories(t *testing.T) {
	f := newFixture(t)
	requester, owner := uuid.New(), uuid.New()
	f.addRecord(owner, model.CategoryLabResults)
	f.addRecord(owner, model.CategoryImaging)

	in := validInput(requester, owner)
	in.Categories = []model.Category{model.CategoryAll}
	req, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)

	result, err := f.svc.Respond(context.Background(), req.ID, owner, RespondInput{Decision: model.DecisionApprove})
	require.NoError(t, err)
	assert.Len(t, result.Outcomes, 2)
	assert.Len(t, f.grants.grants, 2)
}

func TestRespondOnlyByOwner(t *testing.T) {
	f := newFixture(t)
	requester, owner := uuid.New(), uuid.New()

	req, err := f.svc.Create(context.Background(), validInput(requester, owner))
	require.NoError(t, err)

	_, err = f.svc.Respond(context.Background(), req.ID, requester, RespondInput{Decision: model.DecisionApprove})
	assert.True(t, errors.IsCode(err, errors.ErrForbidden))
}

func TestRespondIsSingleShot(t *testing.T) {
	f := newFixture(t)
	requester, owner := uuid.New(), uuid.New()

	req, err := f.svc.Create(context.Background(), validInput(requester, owner))
	require.NoError(t, err)

	_, err = f.svc.Respond(context.Background(), req.ID, owner, RespondInput{Decision: model.DecisionDeny})
	require.NoError(t, err)

	_, err = f.svc.Respond(context.Background(), req.ID, owner, RespondInput{Decision: model.DecisionApprove})
	assert.True(t, errors.IsCode(err, errors.ErrInvalidState))
	assert.Empty(t, f.grants.grants)
}

func TestRespondApprovePartialFailure(t *testing.T) {
	f := newFixture(t)
	requester, owner := uuid.New(), uuid.New()
	ok := f.addRecord(owner, model.CategoryLabResults)
	bad := f.addRecord(owner, model.CategoryLabResults)
	f.grants.insertErr = map[uuid.UUID]error{bad.ID: fmt.Errorf("connection reset")}

	req, err := f.svc.Create(context.Background(), validInput(requester, owner))
	require.NoError(t, err)

	result, err := f.svc.Respond(context.Background(), req.ID, owner, RespondInput{Decision: model.DecisionApprove})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrPartialFailure))

	// The request is approved regardless; the failed record is retryable.
	assert.Equal(t, model.RequestStatusApproved, result.Request.Status)
	require.Len(t, result.Outcomes, 2)
	for _, outcome := range result.Outcomes {
		if outcome.RecordID == ok.ID {
			assert.NotNil(t, outcome.GrantID)
		} else {
			assert.NotEmpty(t, outcome.Error)
		}
	}
}

func TestRespondAfterExpiryStillWins(t *testing.T) {
	f := newFixture(t)
	requester, owner := uuid.New(), uuid.New()
	f.addRecord(owner, model.CategoryLabResults)

	req, err := f.svc.Create(context.Background(), validInput(requester, owner))
	require.NoError(t, err)

	// Days later, the owner answers a stale request. The explicit response
	// still lands; staleness never blocks an owner decision.
	f.svc.now = func() time.Time { return f.now.Add(90 * 24 * time.Hour) }

	result, err := f.svc.Respond(context.Background(), req.ID, owner, RespondInput{Decision: model.DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusApproved, result.Request.Status)
}
