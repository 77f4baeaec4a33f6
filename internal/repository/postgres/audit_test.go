package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/recordvault/access-api/internal/model"
)

func TestAppendFilterClauseScopesAccessor(t *testing.T) {
	accessor := uuid.New()
	clause, args := appendFilterClause("WHERE 1=1", nil, &model.AuditFilter{
		AccessorID: &accessor,
	})

	assert.Equal(t, "WHERE 1=1 AND accessor_id = $1", clause)
	assert.Equal(t, []interface{}{accessor}, args)
}

func TestAppendFilterClauseAppliesAllPredicates(t *testing.T) {
	owner, accessor, record := uuid.New(), uuid.New(), uuid.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	clause, args := appendFilterClause("WHERE 1=1", nil, &model.AuditFilter{
		OwnerID:    &owner,
		AccessorID: &accessor,
		RecordID:   &record,
		From:       &from,
		To:         &to,
		DeniedOnly: true,
	})

	assert.Equal(t,
		"WHERE 1=1 AND owner_id = $1 AND accessor_id = $2 AND record_id = $3"+
			" AND created_at >= $4 AND created_at <= $5 AND denied",
		clause)
	assert.Equal(t, []interface{}{owner, accessor, record, from, to}, args)
}

func TestAppendFilterClauseNumbersAfterExistingArgs(t *testing.T) {
	record := uuid.New()
	clause, args := appendFilterClause("WHERE id > $1", []interface{}{int64(42)}, &model.AuditFilter{
		RecordID: &record,
	})

	assert.Equal(t, "WHERE id > $1 AND record_id = $2", clause)
	assert.Equal(t, []interface{}{int64(42), record}, args)
}
