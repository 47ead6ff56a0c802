package backend

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fieldops/fieldops/internal/apperrors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type JobNameRequest struct {
	CustomerName string `json:"customer_name"`
	Description  string `json:"description"`
}

// HandleGenerateJobName handles POST /api/v1/companies/{company_id}/ai/job-name
func HandleGenerateJobName(client *Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JobNameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.CustomerName = strings.TrimSpace(req.CustomerName)
		if req.CustomerName == "" {
			apperrors.WriteBadRequest(w, r, "Customer name is required")
			return
		}

		jobName, err := client.GenerateJobName(r.Context(), req.CustomerName, req.Description)
		if err != nil {
			log.Error().Err(err).Msg("Failed to generate job name")
			apperrors.WriteServiceUnavailable(w, r, "Job name generation unavailable")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"job_name": jobName,
		})
	}
}

// HandleReindexCatalog handles POST /api/v1/companies/{company_id}/catalog/reindex.
// The reindex itself is fire-and-forget, so this always reports accepted.
func HandleReindexCatalog(client *Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid company ID")
			return
		}

		go func(companyID string) {
			ctx, cancel := clientContext(client)
			defer cancel()
			client.ReindexCatalog(ctx, companyID)
		}(companyID.String())

		apperrors.WriteSuccess(w, r, http.StatusAccepted, map[string]any{
			"queued": true,
		})
	}
}
