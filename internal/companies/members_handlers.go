package companies

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fieldops/fieldops/internal/access"
	"github.com/fieldops/fieldops/internal/apperrors"
	"github.com/fieldops/fieldops/internal/audit"
	"github.com/fieldops/fieldops/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type MemberRoleUpdateRequest struct {
	Role access.Role `json:"role"`
}

// HandleUpdateMemberRole handles PUT /api/v1/companies/{company_id}/members/{user_id}
func HandleUpdateMemberRole(pool *pgxpool.Pool, table *access.Table, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorUserID := auth.GetUserID(ctx)

		companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid company ID")
			return
		}

		targetUserID, err := uuid.Parse(chi.URLParam(r, "user_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid user ID")
			return
		}

		var req MemberRoleUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		role, err := access.ParseRole(string(req.Role))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid role")
			return
		}

		service := NewService(pool, table)
		prevRole, err := service.UpdateMemberRole(ctx, companyID, actorUserID, targetUserID, role)
		if err != nil {
			if errors.Is(err, ErrNotMember) {
				apperrors.WriteNotFound(w, r, "Company not found")
				return
			}
			if errors.Is(err, ErrInsufficientPermissions) || errors.Is(err, ErrOnlyOwnerGrantsOwner) {
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
				return
			}
			if errors.Is(err, ErrMemberNotFound) {
				apperrors.WriteNotFound(w, r, "Member not found")
				return
			}
			if errors.Is(err, ErrCannotDemoteLastOwner) {
				apperrors.WriteConflict(w, r, "Cannot demote the last owner")
				return
			}
			if errors.Is(err, access.ErrInvalidRole) {
				apperrors.WriteBadRequest(w, r, "Invalid role")
				return
			}

			log.Error().Err(err).Msg("Failed to update member role")
			apperrors.WriteInternalError(w, r, "Failed to update member role")
			return
		}

		if err := auditor.LogMemberRoleUpdated(ctx, companyID, actorUserID, targetUserID, string(prevRole), string(role)); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"updated": true,
		})
	}
}

// HandleRemoveMember handles DELETE /api/v1/companies/{company_id}/members/{user_id}
func HandleRemoveMember(pool *pgxpool.Pool, table *access.Table, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorUserID := auth.GetUserID(ctx)

		companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid company ID")
			return
		}

		targetUserID, err := uuid.Parse(chi.URLParam(r, "user_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid user ID")
			return
		}

		service := NewService(pool, table)
		removedRole, err := service.RemoveMember(ctx, companyID, actorUserID, targetUserID)
		if err != nil {
			if errors.Is(err, ErrNotMember) {
				apperrors.WriteNotFound(w, r, "Company not found")
				return
			}
			if errors.Is(err, ErrInsufficientPermissions) || errors.Is(err, ErrOnlyOwnerGrantsOwner) {
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
				return
			}
			if errors.Is(err, ErrMemberNotFound) {
				apperrors.WriteNotFound(w, r, "Member not found")
				return
			}
			if errors.Is(err, ErrCannotRemoveLastOwner) {
				apperrors.WriteConflict(w, r, "Cannot remove the last owner")
				return
			}

			log.Error().Err(err).Msg("Failed to remove member")
			apperrors.WriteInternalError(w, r, "Failed to remove member")
			return
		}

		if err := auditor.LogMemberRemoved(ctx, companyID, actorUserID, targetUserID, string(removedRole)); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"removed": true,
		})
	}
}
