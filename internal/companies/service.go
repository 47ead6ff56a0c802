package companies

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldops/fieldops/internal/access"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	// ErrCompanyNotFound is returned when a company is not found
	ErrCompanyNotFound = errors.New("company not found")

	// ErrSlugConflict is returned when a company slug already exists
	ErrSlugConflict = errors.New("company slug already exists")

	// ErrNotMember is returned when a user is not a member of a company
	ErrNotMember = errors.New("user is not a member of this company")

	// ErrInsufficientPermissions is returned when a user lacks a required permission
	ErrInsufficientPermissions = errors.New("insufficient permissions")
)

// Service provides company and membership operations
type Service struct {
	pool  *pgxpool.Pool
	table *access.Table
}

// NewService creates a new company service backed by the given permission table
func NewService(pool *pgxpool.Pool, table *access.Table) *Service {
	return &Service{pool: pool, table: table}
}

// GetByID retrieves a company by ID
func (s *Service) GetByID(ctx context.Context, companyID uuid.UUID) (*Company, error) {
	var company Company

	query := `
		SELECT id, name, slug, created_by_user_id, created_at, updated_at
		FROM companies
		WHERE id = $1
	`

	err := s.pool.QueryRow(ctx, query, companyID).Scan(
		&company.ID,
		&company.Name,
		&company.Slug,
		&company.CreatedByUserID,
		&company.CreatedAt,
		&company.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	return &company, nil
}

// GetBySlug retrieves a company by slug
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Company, error) {
	var company Company

	query := `
		SELECT id, name, slug, created_by_user_id, created_at, updated_at
		FROM companies
		WHERE slug = $1
	`

	err := s.pool.QueryRow(ctx, query, slug).Scan(
		&company.ID,
		&company.Name,
		&company.Slug,
		&company.CreatedByUserID,
		&company.CreatedAt,
		&company.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	return &company, nil
}

// ListUserCompanies retrieves all companies for a user with their roles
func (s *Service) ListUserCompanies(ctx context.Context, userID uuid.UUID) ([]CompanyWithRole, error) {
	query := `
		SELECT c.id, c.name, c.slug, c.created_by_user_id, c.created_at, c.updated_at, m.role
		FROM companies c
		INNER JOIN company_members m ON c.id = m.company_id
		WHERE m.user_id = $1
		ORDER BY c.created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user companies: %w", err)
	}
	defer rows.Close()

	var out []CompanyWithRole
	for rows.Next() {
		var company CompanyWithRole
		err := rows.Scan(
			&company.ID,
			&company.Name,
			&company.Slug,
			&company.CreatedByUserID,
			&company.CreatedAt,
			&company.UpdatedAt,
			&company.Role,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		out = append(out, company)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating company rows: %w", err)
	}

	return out, nil
}

// CreateWithOwner creates a new company and makes the user its owner.
// The company row and the owner membership are written in one transaction.
func (s *Service) CreateWithOwner(ctx context.Context, name, slug string, userID uuid.UUID) (*Company, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var company Company
	query := `
		INSERT INTO companies (name, slug, created_by_user_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, slug, created_by_user_id, created_at, updated_at
	`

	err = tx.QueryRow(ctx, query, name, slug, userID).Scan(
		&company.ID,
		&company.Name,
		&company.Slug,
		&company.CreatedByUserID,
		&company.CreatedAt,
		&company.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, ErrSlugConflict
		}
		return nil, fmt.Errorf("failed to create company: %w", err)
	}

	memberQuery := `
		INSERT INTO company_members (company_id, user_id, role)
		VALUES ($1, $2, $3)
	`

	_, err = tx.Exec(ctx, memberQuery, company.ID, userID, access.RoleOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &company, nil
}

// ListMembers retrieves all members of a company
func (s *Service) ListMembers(ctx context.Context, companyID uuid.UUID) ([]MemberInfo, error) {
	query := `
		SELECT m.user_id, u.email, m.role, m.invited_by, m.invited_at, m.created_at
		FROM company_members m
		INNER JOIN users u ON m.user_id = u.id
		WHERE m.company_id = $1
		ORDER BY m.created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []MemberInfo
	for rows.Next() {
		var member MemberInfo
		var invitedBy uuid.NullUUID
		err := rows.Scan(
			&member.UserID,
			&member.Email,
			&member.Role,
			&invitedBy,
			&member.InvitedAt,
			&member.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if invitedBy.Valid {
			member.InvitedBy = &invitedBy.UUID
		}
		members = append(members, member)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}

	return members, nil
}

// ResolveRole looks up a user's role within a company. The stored value is
// normalized through access.ParseRole so legacy memberships resolve to the
// canonical set. Satisfies access.RoleResolver.
func (s *Service) ResolveRole(ctx context.Context, userID, companyID uuid.UUID) (access.Role, error) {
	var raw string

	query := `
		SELECT role FROM company_members
		WHERE company_id = $1 AND user_id = $2
	`

	err := s.pool.QueryRow(ctx, query, companyID, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", access.ErrNoMembership
		}
		return "", fmt.Errorf("failed to resolve role: %w", err)
	}

	role, err := access.ParseRole(raw)
	if err != nil {
		log.Error().
			Str("user_id", userID.String()).
			Str("company_id", companyID.String()).
			Str("stored_role", raw).
			Msg("Membership carries an unrecognized role value")
		return "", fmt.Errorf("stored role %q: %w", raw, err)
	}

	return role, nil
}

// CheckPermission resolves the user's role and verifies the permission
// against the static table. This is the authorization check every mutating
// operation performs at its own boundary; route-level guards are a
// presentation convenience layered on top of it, never a substitute.
func (s *Service) CheckPermission(ctx context.Context, userID, companyID uuid.UUID, perm access.Permission) (access.Role, error) {
	role, err := s.ResolveRole(ctx, userID, companyID)
	if err != nil {
		if errors.Is(err, access.ErrNoMembership) {
			log.Debug().
				Str("user_id", userID.String()).
				Str("company_id", companyID.String()).
				Msg("RBAC: User is not a member of company")
			return "", ErrNotMember
		}
		return "", err
	}

	if !s.table.HasPermission(role, perm) {
		log.Warn().
			Str("user_id", userID.String()).
			Str("company_id", companyID.String()).
			Str("role", string(role)).
			Str("permission", string(perm)).
			Msg("RBAC: Insufficient permissions")
		return role, ErrInsufficientPermissions
	}

	return role, nil
}
