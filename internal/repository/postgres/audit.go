package postgres

import (
	"context"
	"fmt"

	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/repository"
)

// auditRepository only ever inserts and selects. The audit_logs table is
// append-only; corrections are compensating entries.
type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Insert(ctx context.Context, entry *model.AuditEntry) (int64, error) {
	query := `
		INSERT INTO audit_logs (
			owner_id, accessor_id, record_id, access_type, reason,
			denied, deny_reason, ip_address, user_agent, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	var id int64
	err := r.GetDB().GetContext(ctx, &id, query,
		entry.OwnerID,
		entry.AccessorID,
		entry.RecordID,
		entry.AccessType,
		entry.Reason,
		entry.Denied,
		entry.DenyReason,
		entry.IPAddress,
		entry.UserAgent,
		entry.Metadata,
		entry.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append audit entry: %w", err)
	}
	return id, nil
}

// appendFilterClause renders the filter predicates shared by Query and
// AggregateStats, numbering placeholders after whatever args already exist.
func appendFilterClause(clause string, args []interface{}, filter *model.AuditFilter) (string, []interface{}) {
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clause += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}
	if filter.AccessorID != nil {
		args = append(args, *filter.AccessorID)
		clause += fmt.Sprintf(" AND accessor_id = $%d", len(args))
	}
	if filter.RecordID != nil {
		args = append(args, *filter.RecordID)
		clause += fmt.Sprintf(" AND record_id = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clause += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clause += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	if filter.DeniedOnly {
		clause += " AND denied"
	}
	return clause, args
}

// Query pages over the log by entry id, ascending, so repeated calls with the
// same filter and cursor return the same result set as of read time.
func (r *auditRepository) Query(ctx context.Context, filter *model.AuditFilter) ([]*model.AuditEntry, error) {
	query, args := appendFilterClause(
		`SELECT * FROM audit_logs WHERE id > $1`,
		[]interface{}{filter.AfterID},
		filter,
	)

	query += " ORDER BY id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var entries []*model.AuditEntry
	if err := r.GetDB().SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	return entries, nil
}

func (r *auditRepository) AggregateStats(ctx context.Context, filter *model.AuditFilter) (*model.AggregateStats, error) {
	// Same predicate set as Query: stats honor the caller's scoping exactly.
	whereClause, args := appendFilterClause("WHERE 1=1", nil, filter)

	stats := &model.AggregateStats{
		TypeCounts:   make(map[string]int),
		ReasonCounts: make(map[string]int),
	}

	countQuery := `SELECT COUNT(*), COUNT(*) FILTER (WHERE denied) FROM audit_logs ` + whereClause
	if err := r.GetDB().QueryRowContext(ctx, countQuery, args...).Scan(&stats.TotalEntries, &stats.DeniedCount); err != nil {
		return nil, fmt.Errorf("failed to count audit entries: %w", err)
	}

	typeQuery := `
		SELECT access_type, COUNT(*) AS count
		FROM audit_logs ` + whereClause + `
		GROUP BY access_type
	`
	rows, err := r.GetDB().QueryContext(ctx, typeQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate access types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var accessType string
		var count int
		if err := rows.Scan(&accessType, &count); err != nil {
			return nil, err
		}
		stats.TypeCounts[accessType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reasonQuery := `
		SELECT deny_reason, COUNT(*) AS count
		FROM audit_logs ` + whereClause + ` AND denied
		GROUP BY deny_reason
	`
	rows, err = r.GetDB().QueryContext(ctx, reasonQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate deny reasons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reason string
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, err
		}
		stats.ReasonCounts[reason] = count
	}
	return stats, rows.Err()
}
