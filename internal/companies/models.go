package companies

import (
	"time"

	"github.com/fieldops/fieldops/internal/access"
	"github.com/google/uuid"
)

// Company represents a tenant in the system
type Company struct {
	ID              uuid.UUID `db:"id"`
	Name            string    `db:"name"`
	Slug            string    `db:"slug"`
	CreatedByUserID uuid.UUID `db:"created_by_user_id"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// Membership associates a user with exactly one company and one role.
// A user has at most one active membership per company.
type Membership struct {
	CompanyID uuid.UUID   `db:"company_id"`
	UserID    uuid.UUID   `db:"user_id"`
	Role      access.Role `db:"role"`
	InvitedBy *uuid.UUID  `db:"invited_by"`
	InvitedAt *time.Time  `db:"invited_at"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

// CompanyWithRole combines company information with the user's role
type CompanyWithRole struct {
	Company
	Role access.Role `db:"role"`
}

// MemberInfo represents a member of a company with their details
type MemberInfo struct {
	UserID    uuid.UUID   `db:"user_id" json:"user_id"`
	Email     string      `db:"email" json:"email"`
	Role      access.Role `db:"role" json:"role"`
	InvitedBy *uuid.UUID  `db:"invited_by" json:"invited_by,omitempty"`
	InvitedAt *time.Time  `db:"invited_at" json:"invited_at,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}
