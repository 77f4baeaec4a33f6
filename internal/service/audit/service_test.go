package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/pkg/errors"
)

type fakeAuditRepo struct {
	entries    []*model.AuditEntry
	insertErr  error
	lastFilter *model.AuditFilter
	nextID     int64
}

func (f *fakeAuditRepo) Insert(_ context.Context, entry *model.AuditEntry) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.nextID++
	entry.ID = f.nextID
	f.entries = append(f.entries, entry)
	return f.nextID, nil
}

func (f *fakeAuditRepo) Query(_ context.Context, filter *model.AuditFilter) ([]*model.AuditEntry, error) {
	f.lastFilter = filter
	return f.entries, nil
}

func (f *fakeAuditRepo) AggregateStats(_ context.Context, filter *model.AuditFilter) (*model.AggregateStats, error) {
	f.lastFilter = filter
	return &model.AggregateStats{TotalEntries: int64(len(f.entries))}, nil
}

func newTestService(repo *fakeAuditRepo) *Service {
	s := NewService(repo, nil)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := newTestService(repo)
	owner, accessor := uuid.New(), uuid.New()

	first, err := svc.Append(context.Background(), owner, accessor, model.AccessTypeView, nil)
	require.NoError(t, err)
	second, err := svc.Append(context.Background(), owner, accessor, model.AccessTypeDownload, nil)
	require.NoError(t, err)

	assert.Greater(t, second, first)
}

func TestAppendCarriesOptions(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := newTestService(repo)
	recordID := uuid.New()

	_, err := svc.Append(context.Background(), uuid.New(), uuid.New(), model.AccessTypeEmergency, &EntryOptions{
		RecordID:   &recordID,
		Reason:     "unresponsive patient",
		Origin:     model.Origin{IPAddress: "10.1.2.3", UserAgent: "responder-app"},
		Metadata:   map[string]interface{}{"token_fingerprint": "deadbeef"},
		Denied:     true,
		DenyReason: model.DenyReasonTokenExpired,
	})
	require.NoError(t, err)

	entry := repo.entries[0]
	assert.Equal(t, recordID, *entry.RecordID)
	assert.True(t, entry.Denied)
	assert.Equal(t, model.DenyReasonTokenExpired, entry.DenyReason)
	assert.Equal(t, "10.1.2.3", entry.IPAddress)
	assert.JSONEq(t, `{"token_fingerprint":"deadbeef"}`, string(entry.Metadata))
}

func TestAppendStoreFaultSurfaces(t *testing.T) {
	repo := &fakeAuditRepo{insertErr: fmt.Errorf("disk full")}
	svc := newTestService(repo)

	_, err := svc.Append(context.Background(), uuid.New(), uuid.New(), model.AccessTypeView, nil)
	assert.True(t, errors.IsCode(err, errors.ErrStoreUnavailable))
}

func TestQueryClampsLimit(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := newTestService(repo)

	_, err := svc.Query(context.Background(), &model.AuditFilter{Limit: 0})
	require.NoError(t, err)
	assert.Equal(t, 1000, repo.lastFilter.Limit)

	_, err = svc.Query(context.Background(), &model.AuditFilter{Limit: 5000})
	require.NoError(t, err)
	assert.Equal(t, 1000, repo.lastFilter.Limit)

	_, err = svc.Query(context.Background(), &model.AuditFilter{Limit: 25})
	require.NoError(t, err)
	assert.Equal(t, 25, repo.lastFilter.Limit)
}
