package companies

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldops/fieldops/internal/access"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UpdateMemberRole changes a member's role. Only actors holding the
// manage-team permission may change roles; granting or revoking the owner
// role additionally requires the actor to be an owner, and the last owner
// can never be demoted.
func (s *Service) UpdateMemberRole(ctx context.Context, companyID, actorUserID, targetUserID uuid.UUID, newRole access.Role) (previousRole access.Role, err error) {
	if !newRole.IsValid() {
		return "", access.ErrInvalidRole
	}

	actorRole, err := s.CheckPermission(ctx, actorUserID, companyID, access.PermManageTeam)
	if err != nil {
		return "", err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var currentRole access.Role
	if err := tx.QueryRow(ctx, `
		SELECT role
		FROM company_members
		WHERE company_id = $1 AND user_id = $2
		FOR UPDATE
	`, companyID, targetUserID).Scan(&currentRole); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrMemberNotFound
		}
		return "", fmt.Errorf("failed to load member role: %w", err)
	}

	if (currentRole == access.RoleOwner || newRole == access.RoleOwner) && actorRole != access.RoleOwner {
		return "", ErrOnlyOwnerGrantsOwner
	}

	if currentRole == access.RoleOwner && newRole != access.RoleOwner {
		owners, err := countOwnersLocked(ctx, tx, companyID)
		if err != nil {
			return "", err
		}
		if owners <= 1 {
			return "", ErrCannotDemoteLastOwner
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE company_members
		SET role = $3, updated_at = NOW()
		WHERE company_id = $1 AND user_id = $2
	`, companyID, targetUserID, newRole); err != nil {
		return "", fmt.Errorf("failed to update member role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return currentRole, nil
}

// RemoveMember removes a member from a company. Requires manage-team;
// removing an owner requires the actor to be an owner, and the last owner
// can never be removed.
func (s *Service) RemoveMember(ctx context.Context, companyID, actorUserID, targetUserID uuid.UUID) (removedRole access.Role, err error) {
	actorRole, err := s.CheckPermission(ctx, actorUserID, companyID, access.PermManageTeam)
	if err != nil {
		return "", err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var targetRole access.Role
	if err := tx.QueryRow(ctx, `
		SELECT role
		FROM company_members
		WHERE company_id = $1 AND user_id = $2
		FOR UPDATE
	`, companyID, targetUserID).Scan(&targetRole); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrMemberNotFound
		}
		return "", fmt.Errorf("failed to load member role: %w", err)
	}

	if targetRole == access.RoleOwner {
		if actorRole != access.RoleOwner {
			return "", ErrOnlyOwnerGrantsOwner
		}

		owners, err := countOwnersLocked(ctx, tx, companyID)
		if err != nil {
			return "", err
		}
		if owners <= 1 {
			return "", ErrCannotRemoveLastOwner
		}
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM company_members
		WHERE company_id = $1 AND user_id = $2
	`, companyID, targetUserID)
	if err != nil {
		return "", fmt.Errorf("failed to remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", ErrMemberNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return targetRole, nil
}

// countOwnersLocked locks and counts the owner memberships of a company.
func countOwnersLocked(ctx context.Context, tx pgx.Tx, companyID uuid.UUID) (int, error) {
	rows, err := tx.Query(ctx, `
		SELECT user_id
		FROM company_members
		WHERE company_id = $1 AND role = $2
		FOR UPDATE
	`, companyID, access.RoleOwner)
	if err != nil {
		return 0, fmt.Errorf("failed to lock owners: %w", err)
	}
	defer rows.Close()

	var owners int
	for rows.Next() {
		owners++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to lock owners: %w", err)
	}

	return owners, nil
}
