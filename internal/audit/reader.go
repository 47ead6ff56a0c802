package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Reader struct {
	pool *pgxpool.Pool
}

func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

// ListByWorkItem returns the audit trail for one work item, newest first.
func (r *Reader) ListByWorkItem(ctx context.Context, workItemID uuid.UUID, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, company_id, work_item_id, actor_user_id, action, field, old_value, new_value, created_at
		FROM audit_trail
		WHERE work_item_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, workItemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListByCompany returns the audit trail across a company's work items,
// newest first.
func (r *Reader) ListByCompany(ctx context.Context, companyID uuid.UUID, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, company_id, work_item_id, actor_user_id, action, field, old_value, new_value, created_at
		FROM audit_trail
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEntries(rows pgxRows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var entry Entry
		var actorUserID uuid.NullUUID

		if err := rows.Scan(
			&entry.ID,
			&entry.CompanyID,
			&entry.WorkItemID,
			&actorUserID,
			&entry.Action,
			&entry.Field,
			&entry.OldValue,
			&entry.NewValue,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}

		if actorUserID.Valid {
			entry.ActorUserID = &actorUserID.UUID
		}

		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return out, nil
}
