package companies

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/fieldops/fieldops/internal/access"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const inviteTTL = 7 * 24 * time.Hour

func normalizeInviteEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", errors.New("email is required")
	}
	if len(email) > 320 {
		return "", errors.New("email is too long")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", errors.New("invalid email address")
	}
	return email, nil
}

func (s *Service) CreateInvite(ctx context.Context, companyID, actorUserID uuid.UUID, email string, role access.Role) (*Invite, string, error) {
	email, err := normalizeInviteEmail(email)
	if err != nil {
		return nil, "", err
	}

	if !role.IsValid() {
		return nil, "", access.ErrInvalidRole
	}
	if role == access.RoleOwner {
		return nil, "", ErrCannotInviteOwner
	}

	actorRole, err := s.CheckPermission(ctx, actorUserID, companyID, access.PermManageTeam)
	if err != nil {
		return nil, "", err
	}
	if actorRole == access.RoleAdmin && role == access.RoleAdmin {
		return nil, "", ErrInsufficientPermissions
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Revoke any existing open invites for this email in the company.
	_, err = tx.Exec(ctx, `
		UPDATE company_invites
		SET revoked_at = NOW(), revoked_by_user_id = $3
		WHERE company_id = $1
		  AND email = $2
		  AND accepted_at IS NULL
		  AND revoked_at IS NULL
	`, companyID, email, actorUserID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to revoke existing invites: %w", err)
	}

	var invite Invite
	for attempt := 0; attempt < 3; attempt++ {
		token, tokenHash, err := GenerateInviteToken()
		if err != nil {
			return nil, "", err
		}

		expiresAt := time.Now().UTC().Add(inviteTTL)

		err = tx.QueryRow(ctx, `
			INSERT INTO company_invites (
			  company_id, email, role, token_hash, created_by_user_id, expires_at
			)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, company_id, email, role, created_at, expires_at
		`, companyID, email, role, tokenHash, actorUserID, expiresAt).Scan(
			&invite.ID,
			&invite.CompanyID,
			&invite.Email,
			&invite.Role,
			&invite.CreatedAt,
			&invite.ExpiresAt,
		)
		if err == nil {
			if err := tx.Commit(ctx); err != nil {
				return nil, "", fmt.Errorf("failed to commit transaction: %w", err)
			}
			return &invite, token, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Token hash collision (extremely unlikely); retry.
			continue
		}
		return nil, "", fmt.Errorf("failed to create invite: %w", err)
	}

	return nil, "", fmt.Errorf("failed to create invite: token collision retry exhausted")
}

func (s *Service) ListInvites(ctx context.Context, companyID, actorUserID uuid.UUID) ([]InviteListItem, error) {
	if _, err := s.CheckPermission(ctx, actorUserID, companyID, access.PermManageTeam); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT
		  i.id,
		  i.email,
		  i.role,
		  i.created_at,
		  i.expires_at,
		  u.email AS created_by_email
		FROM company_invites i
		INNER JOIN users u ON u.id = i.created_by_user_id
		WHERE i.company_id = $1
		  AND i.accepted_at IS NULL
		  AND i.revoked_at IS NULL
		  AND i.expires_at > NOW()
		ORDER BY i.created_at DESC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var invites []InviteListItem
	for rows.Next() {
		var inv InviteListItem
		if err := rows.Scan(&inv.ID, &inv.Email, &inv.Role, &inv.CreatedAt, &inv.ExpiresAt, &inv.CreatedByEmail); err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invites: %w", err)
	}

	return invites, nil
}

func (s *Service) RevokeInvite(ctx context.Context, companyID, inviteID, actorUserID uuid.UUID) error {
	if _, err := s.CheckPermission(ctx, actorUserID, companyID, access.PermManageTeam); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE company_invites
		SET revoked_at = NOW(), revoked_by_user_id = $3
		WHERE id = $1
		  AND company_id = $2
		  AND accepted_at IS NULL
		  AND revoked_at IS NULL
	`, inviteID, companyID, actorUserID)
	if err != nil {
		return fmt.Errorf("failed to revoke invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInviteNotFound
	}

	return nil
}

func (s *Service) AcceptInvite(ctx context.Context, token string, userID uuid.UUID) (inviteID, companyID uuid.UUID, role access.Role, err error) {
	if !ValidateInviteTokenFormat(token) {
		return uuid.Nil, uuid.Nil, "", ErrInviteNotFound
	}
	tokenHash := HashInviteToken(token)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var invite Invite
	var createdBy uuid.UUID
	var acceptedAt *time.Time
	var revokedAt *time.Time
	err = tx.QueryRow(ctx, `
		SELECT id, company_id, email, role, created_by_user_id, created_at, expires_at, accepted_at, revoked_at
		FROM company_invites
		WHERE token_hash = $1
		FOR UPDATE
	`, tokenHash).Scan(
		&invite.ID,
		&invite.CompanyID,
		&invite.Email,
		&invite.Role,
		&createdBy,
		&invite.CreatedAt,
		&invite.ExpiresAt,
		&acceptedAt,
		&revokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, uuid.Nil, "", ErrInviteNotFound
		}
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to load invite: %w", err)
	}

	if acceptedAt != nil || revokedAt != nil {
		return uuid.Nil, uuid.Nil, "", ErrInviteNotActive
	}
	if !invite.ExpiresAt.After(time.Now().UTC()) {
		return uuid.Nil, uuid.Nil, "", ErrInviteExpired
	}

	var userEmail string
	err = tx.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&userEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, uuid.Nil, "", fmt.Errorf("user not found")
		}
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to load user: %w", err)
	}
	if !strings.EqualFold(userEmail, invite.Email) {
		return uuid.Nil, uuid.Nil, "", ErrInviteEmailMismatch
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO company_members (company_id, user_id, role, invited_by, invited_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (company_id, user_id) DO NOTHING
	`, invite.CompanyID, userID, invite.Role, createdBy)
	if err != nil {
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to create membership: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE company_invites
		SET accepted_at = NOW(), accepted_by_user_id = $2
		WHERE id = $1
		  AND accepted_at IS NULL
		  AND revoked_at IS NULL
	`, invite.ID, userID)
	if err != nil {
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to mark invite accepted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return uuid.Nil, uuid.Nil, "", ErrInviteNotActive
	}

	var finalRole access.Role
	if err := tx.QueryRow(ctx, `
		SELECT role
		FROM company_members
		WHERE company_id = $1 AND user_id = $2
	`, invite.CompanyID, userID).Scan(&finalRole); err != nil {
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to load membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return invite.ID, invite.CompanyID, finalRole, nil
}
