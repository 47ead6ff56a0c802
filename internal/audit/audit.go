// Package audit writes and reads the append-only audit records for
// work-item transitions and company activity. Trail rows are created
// exactly once per transition and never updated or deleted.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Work-item transition actions.
const (
	ActionScheduled    = "scheduled"
	ActionJobCompleted = "job_completed"
	ActionQuotePaid    = "quote_paid"
	ActionArchived     = "archived"
)

// Company activity actions.
const (
	EventUserSignup         = "user.signup"
	EventLoginFailed        = "auth.login_failed"
	EventCompanyCreated     = "company.created"
	EventInviteCreated      = "company.invite_created"
	EventInviteRevoked      = "company.invite_revoked"
	EventInviteAccepted     = "company.invite_accepted"
	EventMemberRoleUpdated  = "company.member_role_updated"
	EventMemberRemoved      = "company.member_removed"
	EventWorkItemCreated    = "work_item.created"
)

// Entry represents one audit trail row for a work item.
type Entry struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	CompanyID   uuid.UUID  `db:"company_id" json:"company_id"`
	WorkItemID  uuid.UUID  `db:"work_item_id" json:"work_item_id"`
	ActorUserID *uuid.UUID `db:"actor_user_id" json:"actor_user_id,omitempty"`
	Action      string     `db:"action" json:"action"`
	Field       string     `db:"field" json:"field"`
	OldValue    *string    `db:"old_value" json:"old_value,omitempty"`
	NewValue    *string    `db:"new_value" json:"new_value,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Writer provides methods to write audit records.
type Writer struct {
	pool *pgxpool.Pool
}

func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// TrailParams contains the fields of a work-item audit trail entry.
type TrailParams struct {
	CompanyID   uuid.UUID
	WorkItemID  uuid.UUID
	ActorUserID *uuid.UUID
	Action      string
	Field       string
	OldValue    *string
	NewValue    *string
}

// AppendTrailTx appends a trail entry within an existing transaction.
// Transition services call this in the same transaction as the state
// mutation the entry records, so the two commit or roll back together.
func (w *Writer) AppendTrailTx(ctx context.Context, tx pgx.Tx, params TrailParams) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO audit_trail (company_id, work_item_id, actor_user_id, action, field, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, params.CompanyID, params.WorkItemID, toNullUUID(params.ActorUserID), params.Action, params.Field, params.OldValue, params.NewValue)
	if err != nil {
		log.Error().Err(err).Str("action", params.Action).Msg("Failed to append audit trail entry")
		return err
	}

	log.Info().
		Str("action", params.Action).
		Str("work_item_id", params.WorkItemID.String()).
		Str("field", params.Field).
		Msg("Audit trail entry appended")

	return nil
}

// ActivityParams contains parameters for logging a company activity event.
type ActivityParams struct {
	CompanyID   *uuid.UUID
	ActorUserID *uuid.UUID
	Action      string
	Meta        map[string]interface{}
}

// LogActivity writes a company activity event. Failures are returned to
// the caller but activity writes are best effort outside transitions.
func (w *Writer) LogActivity(ctx context.Context, params ActivityParams) error {
	metaJSON := []byte("{}")
	if params.Meta != nil {
		b, err := json.Marshal(params.Meta)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal activity meta")
			return err
		}
		metaJSON = b
	}

	_, err := w.pool.Exec(ctx, `
		INSERT INTO activity_log (company_id, actor_user_id, action, meta)
		VALUES ($1, $2, $3, $4)
	`, toNullUUID(params.CompanyID), toNullUUID(params.ActorUserID), params.Action, metaJSON)
	if err != nil {
		log.Error().Err(err).Str("action", params.Action).Msg("Failed to write activity log")
		return err
	}

	log.Info().
		Str("action", params.Action).
		Interface("company_id", params.CompanyID).
		Interface("actor_user_id", params.ActorUserID).
		Msg("Activity event logged")

	return nil
}

func toNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func (w *Writer) LogCompanyCreated(ctx context.Context, companyID, userID uuid.UUID, slug string) error {
	return w.LogActivity(ctx, ActivityParams{
		CompanyID:   &companyID,
		ActorUserID: &userID,
		Action:      EventCompanyCreated,
		Meta: map[string]interface{}{
			"slug": slug,
		},
	})
}

func (w *Writer) LogInviteCreated(ctx context.Context, companyID, actorUserID, inviteID uuid.UUID, email, role string) error {
	return w.LogActivity(ctx, ActivityParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventInviteCreated,
		Meta: map[string]interface{}{
			"invite_id": inviteID.String(),
			"email":     email,
			"role":      role,
		},
	})
}

func (w *Writer) LogInviteRevoked(ctx context.Context, companyID, actorUserID, inviteID uuid.UUID) error {
	return w.LogActivity(ctx, ActivityParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventInviteRevoked,
		Meta: map[string]interface{}{
			"invite_id": inviteID.String(),
		},
	})
}

func (w *Writer) LogInviteAccepted(ctx context.Context, companyID, actorUserID, inviteID uuid.UUID) error {
	return w.LogActivity(ctx, ActivityParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventInviteAccepted,
		Meta: map[string]interface{}{
			"invite_id": inviteID.String(),
		},
	})
}

func (w *Writer) LogMemberRoleUpdated(ctx context.Context, companyID, actorUserID, targetUserID uuid.UUID, previousRole, newRole string) error {
	return w.LogActivity(ctx, ActivityParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventMemberRoleUpdated,
		Meta: map[string]interface{}{
			"target_user_id": targetUserID.String(),
			"previous_role":  previousRole,
			"new_role":       newRole,
		},
	})
}

func (w *Writer) LogMemberRemoved(ctx context.Context, companyID, actorUserID, targetUserID uuid.UUID, removedRole string) error {
	return w.LogActivity(ctx, ActivityParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventMemberRemoved,
		Meta: map[string]interface{}{
			"target_user_id": targetUserID.String(),
			"role":           removedRole,
		},
	})
}

func (w *Writer) LogWorkItemCreated(ctx context.Context, companyID, workItemID, userID uuid.UUID, status string) error {
	return w.LogActivity(ctx, ActivityParams{
		CompanyID:   &companyID,
		ActorUserID: &userID,
		Action:      EventWorkItemCreated,
		Meta: map[string]interface{}{
			"work_item_id": workItemID.String(),
			"status":       status,
		},
	})
}
