package companies

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fieldops/fieldops/internal/access"
	"github.com/fieldops/fieldops/internal/apperrors"
	"github.com/fieldops/fieldops/internal/audit"
	"github.com/fieldops/fieldops/internal/auth"
	"github.com/fieldops/fieldops/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// CreateRequest represents the request to create a company
type CreateRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type CompanyCreateResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt string    `json:"created_at"`
}

type CompanyListItemResponse struct {
	ID   uuid.UUID   `json:"id"`
	Name string      `json:"name"`
	Slug string      `json:"slug"`
	Role access.Role `json:"role"`
}

// HandleCreate handles POST /api/v1/companies
func HandleCreate(pool *pgxpool.Pool, table *access.Table, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		// Parse request
		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		// Validate required fields
		if req.Name == "" {
			apperrors.WriteBadRequest(w, r, "Company name is required")
			return
		}
		if req.Slug == "" {
			apperrors.WriteBadRequest(w, r, "Company slug is required")
			return
		}

		// Normalize and validate slug
		req.Slug = validation.NormalizeSlug(req.Slug)
		if err := validation.ValidateSlug(req.Slug); err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		// Create company
		service := NewService(pool, table)
		company, err := service.CreateWithOwner(ctx, req.Name, req.Slug, userID)
		if err != nil {
			if errors.Is(err, ErrSlugConflict) {
				apperrors.WriteConflict(w, r, "Company slug already exists")
				return
			}
			log.Error().Err(err).Msg("Failed to create company")
			apperrors.WriteInternalError(w, r, "Failed to create company")
			return
		}

		// Log audit event
		if err := auditor.LogCompanyCreated(ctx, company.ID, userID, company.Slug); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
			// Continue - don't fail the request
		}

		// Return created company
		resp := CompanyCreateResponse{
			ID:        company.ID,
			Name:      company.Name,
			Slug:      company.Slug,
			CreatedAt: company.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"company": resp,
		})
	}
}

// HandleList handles GET /api/v1/companies
func HandleList(pool *pgxpool.Pool, table *access.Table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		service := NewService(pool, table)
		companies, err := service.ListUserCompanies(ctx, userID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list companies")
			apperrors.WriteInternalError(w, r, "Failed to list companies")
			return
		}

		resp := make([]CompanyListItemResponse, len(companies))
		for i, c := range companies {
			resp[i] = CompanyListItemResponse{
				ID:   c.ID,
				Name: c.Name,
				Slug: c.Slug,
				Role: c.Role,
			}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"companies": resp,
		})
	}
}

// HandleGet handles GET /api/v1/companies/{company_id}
func HandleGet(pool *pgxpool.Pool, table *access.Table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid company ID")
			return
		}

		service := NewService(pool, table)
		role, err := service.ResolveRole(ctx, userID, companyID)
		if err != nil {
			if errors.Is(err, access.ErrNoMembership) {
				apperrors.WriteNotFound(w, r, "Company not found")
				return
			}
			log.Error().Err(err).Msg("Failed to check company membership")
			apperrors.WriteInternalError(w, r, "Failed to check permissions")
			return
		}

		company, err := service.GetByID(ctx, companyID)
		if err != nil {
			if errors.Is(err, ErrCompanyNotFound) {
				apperrors.WriteNotFound(w, r, "Company not found")
				return
			}
			log.Error().Err(err).Msg("Failed to load company")
			apperrors.WriteInternalError(w, r, "Failed to load company")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"company": map[string]any{
				"id":         company.ID,
				"name":       company.Name,
				"slug":       company.Slug,
				"created_at": company.CreatedAt,
			},
			"role":        role,
			"permissions": permissionList(table.PermissionsFor(role)),
		})
	}
}

func permissionList(set access.PermissionSet) []access.Permission {
	perms := make([]access.Permission, 0, len(set))
	for _, p := range access.AllPermissions() {
		if set.Has(p) {
			perms = append(perms, p)
		}
	}
	return perms
}

// HandleListMembers handles GET /api/v1/companies/{company_id}/members
func HandleListMembers(pool *pgxpool.Pool, table *access.Table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid company ID")
			return
		}

		service := NewService(pool, table)
		if _, err := service.ResolveRole(ctx, userID, companyID); err != nil {
			if errors.Is(err, access.ErrNoMembership) {
				apperrors.WriteNotFound(w, r, "Company not found")
				return
			}
			log.Error().Err(err).Msg("Failed to check company membership")
			apperrors.WriteInternalError(w, r, "Failed to check permissions")
			return
		}

		members, err := service.ListMembers(ctx, companyID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list members")
			apperrors.WriteInternalError(w, r, "Failed to list members")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"members": members,
		})
	}
}
