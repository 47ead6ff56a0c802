package workitems

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the raw pipeline status a work item carries through its
// quoting phase. Lifecycle timestamps, not status, drive the later stages.
type Status string

const (
	StatusLead     Status = "lead"
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusAccepted Status = "accepted"
	StatusSigned   Status = "signed"
	StatusDeclined Status = "declined"
	StatusArchived Status = "archived"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusLead, StatusDraft, StatusSent, StatusAccepted, StatusSigned, StatusDeclined, StatusArchived:
		return true
	}
	return false
}

// WorkItem is the lead/quote/job/invoice entity tracked through its
// lifecycle. It belongs to exactly one company and is never reassigned.
type WorkItem struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	CompanyID       uuid.UUID       `db:"company_id" json:"company_id"`
	CustomerName    string          `db:"customer_name" json:"customer_name"`
	CustomerAddress *string         `db:"customer_address" json:"customer_address,omitempty"`
	JobName         *string         `db:"job_name" json:"job_name,omitempty"`
	Status          Status          `db:"status" json:"status"`
	Total           decimal.Decimal `db:"total" json:"total"`
	ScheduledAt     *time.Time      `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CompletedAt     *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	PaidAt          *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	PaymentMethod   *string         `db:"payment_method" json:"payment_method,omitempty"`
	CreatedByUserID *uuid.UUID      `db:"created_by_user_id" json:"created_by_user_id,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}
