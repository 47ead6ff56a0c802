package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fieldops/fieldops/internal/access"
	"github.com/fieldops/fieldops/internal/archive"
	"github.com/fieldops/fieldops/internal/audit"
	"github.com/fieldops/fieldops/internal/companies"
	"github.com/fieldops/fieldops/internal/workitems"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type lifecycleFixture struct {
	pool      *pgxpool.Pool
	companies *companies.Service
	workitems *workitems.Service

	companyID uuid.UUID
	ownerID   uuid.UUID
	memberID  uuid.UUID
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	table := access.NewTable()
	companiesSvc := companies.NewService(pool, table)
	workitemsSvc := workitems.NewService(pool, companiesSvc, audit.NewWriter(pool))

	ownerID := insertUser(t, pool, "owner@example.com")
	memberID := insertUser(t, pool, "member@example.com")

	company, err := companiesSvc.CreateWithOwner(ctx, "Acme Field Service", "acme-field-service", ownerID)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		INSERT INTO company_members (company_id, user_id, role)
		VALUES ($1, $2, 'member')
	`, company.ID, memberID)
	require.NoError(t, err)

	return &lifecycleFixture{
		pool:      pool,
		companies: companiesSvc,
		workitems: workitemsSvc,
		companyID: company.ID,
		ownerID:   ownerID,
		memberID:  memberID,
	}
}

func insertUser(t *testing.T, pool *pgxpool.Pool, email string) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := pool.QueryRow(context.Background(), `
		INSERT INTO users (email, password_hash)
		VALUES ($1, 'x')
		RETURNING id
	`, email).Scan(&id)
	require.NoError(t, err)
	return id
}

func (f *lifecycleFixture) createItem(t *testing.T, status workitems.Status, total string) *workitems.WorkItem {
	t.Helper()

	item, err := f.workitems.Create(context.Background(), f.companyID, f.ownerID, workitems.CreateParams{
		CustomerName: "Jane Customer",
		Status:       status,
		Total:        decimal.RequireFromString(total),
	})
	require.NoError(t, err)
	return item
}

func (f *lifecycleFixture) trailActions(t *testing.T, itemID uuid.UUID) []string {
	t.Helper()

	rows, err := f.pool.Query(context.Background(), `
		SELECT action FROM audit_trail
		WHERE work_item_id = $1
		ORDER BY created_at ASC, id ASC
	`, itemID)
	require.NoError(t, err)
	defer rows.Close()

	var actions []string
	for rows.Next() {
		var action string
		require.NoError(t, rows.Scan(&action))
		actions = append(actions, action)
	}
	require.NoError(t, rows.Err())
	return actions
}

func TestIntegration_ScheduleCompleteMarkPaid_FullLifecycle(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	item := f.createItem(t, workitems.StatusSigned, "150.00")
	require.Equal(t, workitems.BucketToBeScheduled, workitems.Classify(*item))

	scheduledAt, err := time.Parse(time.RFC3339, "2026-04-01T09:00:00Z")
	require.NoError(t, err)

	updated, err := f.workitems.Schedule(ctx, f.companyID, f.ownerID, item.ID, scheduledAt)
	require.NoError(t, err)
	require.Equal(t, workitems.BucketScheduled, workitems.Classify(*updated))

	updated, err = f.workitems.Complete(ctx, f.companyID, f.ownerID, item.ID)
	require.NoError(t, err)
	require.Equal(t, workitems.BucketInvoiceable, workitems.Classify(*updated))

	paidAt := scheduledAt.Add(72 * time.Hour)
	updated, err = f.workitems.MarkPaid(ctx, f.companyID, f.ownerID, item.ID, &paidAt, "")
	require.NoError(t, err)
	require.Equal(t, workitems.BucketPaid, workitems.Classify(*updated))
	require.NotNil(t, updated.PaymentMethod)
	require.Equal(t, "manual", *updated.PaymentMethod)

	// Every transition leaves a trail entry, Complete included.
	actions := f.trailActions(t, item.ID)
	require.Equal(t, []string{
		audit.ActionScheduled,
		audit.ActionJobCompleted,
		audit.ActionQuotePaid,
	}, actions)
}

func TestIntegration_MarkPaidWithoutTimestampWritesNothing(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	item := f.createItem(t, workitems.StatusSigned, "80.00")

	_, err := f.workitems.MarkPaid(ctx, f.companyID, f.ownerID, item.ID, nil, "card")
	require.ErrorIs(t, err, workitems.ErrPaidAtRequired)

	reloaded, err := f.workitems.Get(ctx, f.companyID, f.ownerID, item.ID)
	require.NoError(t, err)
	require.Nil(t, reloaded.PaidAt)
	require.Nil(t, reloaded.PaymentMethod)

	require.Empty(t, f.trailActions(t, item.ID))
}

func TestIntegration_TransitionsEnforcePermissions(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	item := f.createItem(t, workitems.StatusSigned, "60.00")
	when := time.Now().UTC()

	// Plain members hold no transition permissions.
	_, err := f.workitems.Schedule(ctx, f.companyID, f.memberID, item.ID, when)
	require.ErrorIs(t, err, companies.ErrInsufficientPermissions)

	_, err = f.workitems.Complete(ctx, f.companyID, f.memberID, item.ID)
	require.ErrorIs(t, err, companies.ErrInsufficientPermissions)

	_, err = f.workitems.MarkPaid(ctx, f.companyID, f.memberID, item.ID, &when, "")
	require.ErrorIs(t, err, companies.ErrInsufficientPermissions)

	// A stranger does not learn the company exists.
	strangerID := insertUser(t, f.pool, "stranger@example.com")
	_, err = f.workitems.Schedule(ctx, f.companyID, strangerID, item.ID, when)
	require.ErrorIs(t, err, companies.ErrNotMember)

	require.Empty(t, f.trailActions(t, item.ID))
}

func TestIntegration_ConcurrentSchedulesLastWriteWins(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	item := f.createItem(t, workitems.StatusSigned, "40.00")

	first, err := time.Parse(time.RFC3339, "2026-04-01T09:00:00Z")
	require.NoError(t, err)
	second := first.Add(24 * time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, ts := range []time.Time{first, second} {
		wg.Add(1)
		go func(ts time.Time) {
			defer wg.Done()
			_, err := f.workitems.Schedule(ctx, f.companyID, f.ownerID, item.ID, ts)
			errs <- err
		}(ts)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	reloaded, err := f.workitems.Get(ctx, f.companyID, f.ownerID, item.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.ScheduledAt)

	got := reloaded.ScheduledAt.UTC()
	require.True(t, got.Equal(first) || got.Equal(second), "scheduled_at is %v", got)

	// Both writes were accepted; each left its own trail entry.
	require.Equal(t, []string{audit.ActionScheduled, audit.ActionScheduled}, f.trailActions(t, item.ID))
}

func TestIntegration_ArchiveJobArchivesStaleDeclined(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	stale := f.createItem(t, workitems.StatusDeclined, "10.00")
	fresh := f.createItem(t, workitems.StatusDeclined, "20.00")

	_, err := f.pool.Exec(ctx, `
		UPDATE work_items SET updated_at = NOW() - INTERVAL '120 days' WHERE id = $1
	`, stale.ID)
	require.NoError(t, err)

	require.NoError(t, archive.RunArchiveJob(ctx, f.pool, 90))

	reloaded, err := f.workitems.Get(ctx, f.companyID, f.ownerID, stale.ID)
	require.NoError(t, err)
	require.Equal(t, workitems.StatusArchived, reloaded.Status)
	require.Equal(t, []string{audit.ActionArchived}, f.trailActions(t, stale.ID))

	reloaded, err = f.workitems.Get(ctx, f.companyID, f.ownerID, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, workitems.StatusDeclined, reloaded.Status)

	// Idempotent: a second run archives nothing new.
	require.NoError(t, archive.RunArchiveJob(ctx, f.pool, 90))
	require.Equal(t, []string{audit.ActionArchived}, f.trailActions(t, stale.ID))
}
