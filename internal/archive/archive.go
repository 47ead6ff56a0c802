// Package archive contains the scheduled job that moves stale declined
// work items to the terminal archived status.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldops/fieldops/internal/audit"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ArchiveStaleDeclined archives declined work items that have not been
// touched for the given number of days, writing an audit trail row for
// each in the same transaction. Idempotent - safe to run repeatedly.
//
// Returns the number of items archived.
func ArchiveStaleDeclined(ctx context.Context, pool *pgxpool.Pool, staleDays int) (int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		UPDATE work_items
		SET status = 'archived', updated_at = NOW()
		WHERE status = 'declined'
		  AND updated_at < NOW() - INTERVAL '1 day' * $1
		RETURNING id, company_id
	`, staleDays)
	if err != nil {
		return 0, fmt.Errorf("failed to archive stale declined items: %w", err)
	}

	type archived struct {
		itemID, companyID uuid.UUID
	}
	var archivedItems []archived
	for rows.Next() {
		var a archived
		if err := rows.Scan(&a.itemID, &a.companyID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan archived item: %w", err)
		}
		archivedItems = append(archivedItems, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating archived items: %w", err)
	}

	// Actor is null: these rows record a system action.
	for _, a := range archivedItems {
		if _, err := tx.Exec(ctx, `
			INSERT INTO audit_trail (company_id, work_item_id, actor_user_id, action, field, old_value, new_value)
			VALUES ($1, $2, NULL, $3, 'status', 'declined', 'archived')
		`, a.companyID, a.itemID, audit.ActionArchived); err != nil {
			return 0, fmt.Errorf("failed to append audit entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return int64(len(archivedItems)), nil
}

// RunArchiveJob executes the archival pass and logs the results. This is
// the main entry point called by the cron scheduler.
func RunArchiveJob(ctx context.Context, pool *pgxpool.Pool, staleDays int) error {
	log.Info().
		Int("stale_days", staleDays).
		Msg("Starting archive job")

	startTime := time.Now()

	archived, err := ArchiveStaleDeclined(ctx, pool, staleDays)
	if err != nil {
		log.Error().Err(err).Msg("Failed to archive stale declined items")
		return fmt.Errorf("archive job failed: %w", err)
	}

	duration := time.Since(startTime)

	log.Info().
		Int64("items_archived", archived).
		Dur("duration", duration).
		Msg("Archive job completed")

	return nil
}
