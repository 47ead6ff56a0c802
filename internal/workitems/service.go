package workitems

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldops/fieldops/internal/access"
	"github.com/fieldops/fieldops/internal/audit"
	"github.com/fieldops/fieldops/internal/companies"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	ErrWorkItemNotFound = errors.New("work item not found")
	ErrPaidAtRequired   = errors.New("paid_at timestamp is required")
	ErrInvalidStatus    = errors.New("invalid work item status")
)

const defaultPaymentMethod = "manual"

const workItemColumns = `
	id, company_id, customer_name, customer_address, job_name, status, total,
	scheduled_at, completed_at, paid_at, payment_method,
	created_by_user_id, created_at, updated_at`

// Service owns work-item persistence and the lifecycle transitions.
// Every transition re-checks the actor's permission at this boundary and
// writes its audit trail entry in the same transaction as the state change.
type Service struct {
	pool      *pgxpool.Pool
	companies *companies.Service
	auditor   *audit.Writer
}

func NewService(pool *pgxpool.Pool, companiesSvc *companies.Service, auditor *audit.Writer) *Service {
	return &Service{pool: pool, companies: companiesSvc, auditor: auditor}
}

// CreateParams contains the fields for creating a work item.
type CreateParams struct {
	CustomerName    string
	CustomerAddress *string
	JobName         *string
	Status          Status
	Total           decimal.Decimal
}

func (s *Service) Create(ctx context.Context, companyID, actorUserID uuid.UUID, params CreateParams) (*WorkItem, error) {
	if _, err := s.companies.CheckPermission(ctx, actorUserID, companyID, access.PermCreateQuotes); err != nil {
		return nil, err
	}

	status := params.Status
	if status == "" {
		status = StatusLead
	}
	if !status.IsValid() || status == StatusArchived {
		return nil, ErrInvalidStatus
	}

	var item WorkItem
	err := s.pool.QueryRow(ctx, `
		INSERT INTO work_items (company_id, customer_name, customer_address, job_name, status, total, created_by_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING`+workItemColumns+`
	`, companyID, params.CustomerName, params.CustomerAddress, params.JobName, status, params.Total, actorUserID).Scan(scanTargets(&item)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create work item: %w", err)
	}

	if err := s.auditor.LogWorkItemCreated(ctx, companyID, item.ID, actorUserID, string(item.Status)); err != nil {
		log.Error().Err(err).Msg("Failed to log work item creation")
	}

	return &item, nil
}

func (s *Service) Get(ctx context.Context, companyID, actorUserID, itemID uuid.UUID) (*WorkItem, error) {
	if _, err := s.companies.CheckPermission(ctx, actorUserID, companyID, access.PermViewQuotes); err != nil {
		return nil, err
	}

	var item WorkItem
	err := s.pool.QueryRow(ctx, `
		SELECT`+workItemColumns+`
		FROM work_items
		WHERE id = $1 AND company_id = $2
	`, itemID, companyID).Scan(scanTargets(&item)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkItemNotFound
		}
		return nil, fmt.Errorf("failed to load work item: %w", err)
	}

	return &item, nil
}

// List returns a company's work items, newest first. Archived items are
// included only when includeArchived is set; active views never see them.
func (s *Service) List(ctx context.Context, companyID, actorUserID uuid.UUID, includeArchived bool) ([]WorkItem, error) {
	if _, err := s.companies.CheckPermission(ctx, actorUserID, companyID, access.PermViewQuotes); err != nil {
		return nil, err
	}

	query := `
		SELECT` + workItemColumns + `
		FROM work_items
		WHERE company_id = $1`
	if !includeArchived {
		query += ` AND status <> 'archived'`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	defer rows.Close()

	var items []WorkItem
	for rows.Next() {
		var item WorkItem
		if err := rows.Scan(scanTargets(&item)...); err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating work items: %w", err)
	}

	return items, nil
}

// Stats loads a company's work items and derives the aggregate views in
// the viewer's time zone.
func (s *Service) Stats(ctx context.Context, companyID, actorUserID uuid.UUID, now time.Time, loc *time.Location) (*Stats, error) {
	items, err := s.List(ctx, companyID, actorUserID, true)
	if err != nil {
		return nil, err
	}
	stats := ComputeStats(items, now, loc)
	return &stats, nil
}

// Schedule sets the item's scheduled_at and appends a trail entry, both
// in one transaction. The timestamp is accepted as-is; callers may
// schedule in the past. Concurrent schedules are last write wins.
func (s *Service) Schedule(ctx context.Context, companyID, actorUserID, itemID uuid.UUID, scheduledAt time.Time) (*WorkItem, error) {
	if _, err := s.companies.CheckPermission(ctx, actorUserID, companyID, access.PermScheduleJobs); err != nil {
		return nil, err
	}

	return s.transition(ctx, companyID, actorUserID, itemID, func(item *WorkItem) audit.TrailParams {
		old := formatTimePtr(item.ScheduledAt)
		item.ScheduledAt = &scheduledAt
		return audit.TrailParams{
			Action:   audit.ActionScheduled,
			Field:    "scheduled_at",
			OldValue: old,
			NewValue: formatTimePtr(&scheduledAt),
		}
	}, `UPDATE work_items SET scheduled_at = $3, updated_at = NOW() WHERE id = $1 AND company_id = $2`, scheduledAt)
}

// Complete stamps completed_at with the current time and appends a trail
// entry in the same transaction.
func (s *Service) Complete(ctx context.Context, companyID, actorUserID, itemID uuid.UUID) (*WorkItem, error) {
	if _, err := s.companies.CheckPermission(ctx, actorUserID, companyID, access.PermCompleteJobs); err != nil {
		return nil, err
	}

	completedAt := time.Now().UTC()

	return s.transition(ctx, companyID, actorUserID, itemID, func(item *WorkItem) audit.TrailParams {
		old := formatTimePtr(item.CompletedAt)
		item.CompletedAt = &completedAt
		return audit.TrailParams{
			Action:   audit.ActionJobCompleted,
			Field:    "completed_at",
			OldValue: old,
			NewValue: formatTimePtr(&completedAt),
		}
	}, `UPDATE work_items SET completed_at = $3, updated_at = NOW() WHERE id = $1 AND company_id = $2`, completedAt)
}

// MarkPaid sets paid_at and the payment method. A missing timestamp is a
// validation failure rejected before any persistence attempt.
func (s *Service) MarkPaid(ctx context.Context, companyID, actorUserID, itemID uuid.UUID, paidAt *time.Time, paymentMethod string) (*WorkItem, error) {
	if paidAt == nil {
		return nil, ErrPaidAtRequired
	}
	if paymentMethod == "" {
		paymentMethod = defaultPaymentMethod
	}

	if _, err := s.companies.CheckPermission(ctx, actorUserID, companyID, access.PermMarkPaid); err != nil {
		return nil, err
	}

	return s.transition(ctx, companyID, actorUserID, itemID, func(item *WorkItem) audit.TrailParams {
		old := formatTimePtr(item.PaidAt)
		item.PaidAt = paidAt
		item.PaymentMethod = &paymentMethod
		return audit.TrailParams{
			Action:   audit.ActionQuotePaid,
			Field:    "paid_at",
			OldValue: old,
			NewValue: formatTimePtr(paidAt),
		}
	}, `UPDATE work_items SET paid_at = $3, payment_method = $4, updated_at = NOW() WHERE id = $1 AND company_id = $2`, *paidAt, paymentMethod)
}

// Archive moves the item to the terminal archived status.
func (s *Service) Archive(ctx context.Context, companyID, actorUserID, itemID uuid.UUID) (*WorkItem, error) {
	if _, err := s.companies.CheckPermission(ctx, actorUserID, companyID, access.PermEditQuotes); err != nil {
		return nil, err
	}

	return s.transition(ctx, companyID, actorUserID, itemID, func(item *WorkItem) audit.TrailParams {
		old := string(item.Status)
		item.Status = StatusArchived
		return audit.TrailParams{
			Action:   audit.ActionArchived,
			Field:    "status",
			OldValue: &old,
			NewValue: strPtr(string(StatusArchived)),
		}
	}, `UPDATE work_items SET status = 'archived', updated_at = NOW() WHERE id = $1 AND company_id = $2`)
}

// transition loads the item, applies the update statement, and appends
// the audit trail entry, all inside one transaction so the state change
// and its audit record commit or roll back together.
func (s *Service) transition(ctx context.Context, companyID, actorUserID, itemID uuid.UUID, mutate func(*WorkItem) audit.TrailParams, updateSQL string, updateArgs ...any) (*WorkItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var item WorkItem
	err = tx.QueryRow(ctx, `
		SELECT`+workItemColumns+`
		FROM work_items
		WHERE id = $1 AND company_id = $2
		FOR UPDATE
	`, itemID, companyID).Scan(scanTargets(&item)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkItemNotFound
		}
		return nil, fmt.Errorf("failed to load work item: %w", err)
	}

	params := mutate(&item)
	params.CompanyID = companyID
	params.WorkItemID = itemID
	params.ActorUserID = &actorUserID

	args := append([]any{itemID, companyID}, updateArgs...)
	if _, err := tx.Exec(ctx, updateSQL, args...); err != nil {
		return nil, fmt.Errorf("failed to update work item: %w", err)
	}

	if err := s.auditor.AppendTrailTx(ctx, tx, params); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	item.UpdatedAt = time.Now().UTC()
	return &item, nil
}

func scanTargets(item *WorkItem) []any {
	return []any{
		&item.ID, &item.CompanyID, &item.CustomerName, &item.CustomerAddress,
		&item.JobName, &item.Status, &item.Total, &item.ScheduledAt,
		&item.CompletedAt, &item.PaidAt, &item.PaymentMethod,
		&item.CreatedByUserID, &item.CreatedAt, &item.UpdatedAt,
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func strPtr(s string) *string {
	return &s
}
