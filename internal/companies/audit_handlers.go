package companies

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fieldops/fieldops/internal/access"
	"github.com/fieldops/fieldops/internal/apperrors"
	"github.com/fieldops/fieldops/internal/audit"
	"github.com/fieldops/fieldops/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// HandleListAudit handles GET /api/v1/companies/{company_id}/audit
func HandleListAudit(pool *pgxpool.Pool, table *access.Table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid company ID")
			return
		}

		service := NewService(pool, table)
		if _, err := service.CheckPermission(ctx, userID, companyID, access.PermViewAuditLog); err != nil {
			if errors.Is(err, ErrNotMember) {
				apperrors.WriteNotFound(w, r, "Company not found")
				return
			}
			if errors.Is(err, ErrInsufficientPermissions) {
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
				return
			}
			log.Error().Err(err).Msg("Failed to check company permission")
			apperrors.WriteInternalError(w, r, "Failed to check permissions")
			return
		}

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				limit = v
			}
		}

		reader := audit.NewReader(pool)
		entries, err := reader.ListByCompany(ctx, companyID, limit)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list audit log")
			apperrors.WriteInternalError(w, r, "Failed to list audit log")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"entries": entries,
		})
	}
}
