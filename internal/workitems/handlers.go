package workitems

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fieldops/fieldops/internal/access"
	"github.com/fieldops/fieldops/internal/apperrors"
	"github.com/fieldops/fieldops/internal/audit"
	"github.com/fieldops/fieldops/internal/auth"
	"github.com/fieldops/fieldops/internal/companies"
	"github.com/fieldops/fieldops/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type CreateWorkItemRequest struct {
	CustomerName    string  `json:"customer_name"`
	CustomerAddress *string `json:"customer_address,omitempty"`
	JobName         *string `json:"job_name,omitempty"`
	Status          string  `json:"status,omitempty"`
	Total           string  `json:"total,omitempty"`
}

type ScheduleRequest struct {
	ScheduledAt string `json:"scheduled_at"`
}

type MarkPaidRequest struct {
	PaidAt        string `json:"paid_at"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

func newService(pool *pgxpool.Pool, table *access.Table, auditor *audit.Writer) *Service {
	return NewService(pool, companies.NewService(pool, table), auditor)
}

// writeServiceError maps the shared service error taxonomy to HTTP
// responses. Membership failures surface as 404 so non-members cannot
// probe for company existence.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, companies.ErrNotMember):
		apperrors.WriteNotFound(w, r, "Company not found")
	case errors.Is(err, companies.ErrInsufficientPermissions):
		apperrors.WriteForbidden(w, r, "Insufficient permissions")
	case errors.Is(err, ErrWorkItemNotFound):
		apperrors.WriteNotFound(w, r, "Work item not found")
	case errors.Is(err, ErrPaidAtRequired), errors.Is(err, ErrInvalidStatus):
		apperrors.WriteBadRequest(w, r, err.Error())
	default:
		log.Error().Err(err).Msg("Failed to " + what)
		apperrors.WriteInternalError(w, r, "Failed to "+what)
	}
}

// HandleCreate handles POST /api/v1/companies/{company_id}/work-items
func HandleCreate(pool *pgxpool.Pool, table *access.Table, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid company ID")
			return
		}

		var req CreateWorkItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.CustomerName = strings.TrimSpace(req.CustomerName)
		if req.CustomerName == "" {
			apperrors.WriteBadRequest(w, r, "Customer name is required")
			return
		}

		total := decimal.Zero
		if req.Total != "" {
			total, err = decimal.NewFromString(req.Total)
			if err != nil || total.IsNegative() {
				apperrors.WriteBadRequest(w, r, "Invalid total")
				return
			}
		}

		service := newService(pool, table, auditor)
		item, err := service.Create(ctx, companyID, userID, CreateParams{
			CustomerName:    req.CustomerName,
			CustomerAddress: req.CustomerAddress,
			JobName:         req.JobName,
			Status:          Status(req.Status),
			Total:           total,
		})
		if err != nil {
			writeServiceError(w, r, err, "create work item")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"work_item": item,
			"bucket":    Classify(*item),
		})
	}
}

// HandleList handles GET /api/v1/companies/{company_id}/work-items
func HandleList(pool *pgxpool.Pool, table *access.Table, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid company ID")
			return
		}

		includeArchived := r.URL.Query().Get("include_archived") == "true"
		bucketFilter := Bucket(r.URL.Query().Get("bucket"))

		service := newService(pool, table, auditor)
		items, err := service.List(ctx, companyID, userID, includeArchived)
		if err != nil {
			writeServiceError(w, r, err, "list work items")
			return
		}

		type listItem struct {
			WorkItem
			Bucket Bucket `json:"bucket"`
		}

		resp := make([]listItem, 0, len(items))
		for _, item := range items {
			bucket := Classify(item)
			if bucketFilter != "" && bucket != bucketFilter {
				continue
			}
			resp = append(resp, listItem{WorkItem: item, Bucket: bucket})
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"work_items": resp,
		})
	}
}

// HandleGet handles GET /api/v1/companies/{company_id}/work-items/{item_id}
func HandleGet(pool *pgxpool.Pool, table *access.Table, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, itemID, ok := parseIDs(w, r)
		if !ok {
			return
		}

		service := newService(pool, table, auditor)
		item, err := service.Get(ctx, companyID, userID, itemID)
		if err != nil {
			writeServiceError(w, r, err, "load work item")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"work_item": item,
			"bucket":    Classify(*item),
		})
	}
}

// HandleStats handles GET /api/v1/companies/{company_id}/work-items/stats
func HandleStats(pool *pgxpool.Pool, table *access.Table, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid company ID")
			return
		}

		loc := time.UTC
		if tz := r.URL.Query().Get("tz"); tz != "" {
			parsed, err := time.LoadLocation(tz)
			if err != nil {
				apperrors.WriteBadRequest(w, r, "Invalid time zone")
				return
			}
			loc = parsed
		}

		service := newService(pool, table, auditor)
		stats, err := service.Stats(ctx, companyID, userID, time.Now(), loc)
		if err != nil {
			writeServiceError(w, r, err, "compute stats")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"stats": stats,
		})
	}
}

// HandleSchedule handles PUT /api/v1/companies/{company_id}/work-items/{item_id}/schedule
func HandleSchedule(pool *pgxpool.Pool, table *access.Table, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, itemID, ok := parseIDs(w, r)
		if !ok {
			return
		}

		var req ScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		scheduledAt, err := validation.ParseTimestamp(req.ScheduledAt)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid scheduled_at timestamp")
			return
		}

		service := newService(pool, table, auditor)
		item, err := service.Schedule(ctx, companyID, userID, itemID, scheduledAt)
		if err != nil {
			writeServiceError(w, r, err, "schedule work item")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"work_item": item,
			"bucket":    Classify(*item),
		})
	}
}

// HandleComplete handles PUT /api/v1/companies/{company_id}/work-items/{item_id}/complete
func HandleComplete(pool *pgxpool.Pool, table *access.Table, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, itemID, ok := parseIDs(w, r)
		if !ok {
			return
		}

		service := newService(pool, table, auditor)
		item, err := service.Complete(ctx, companyID, userID, itemID)
		if err != nil {
			writeServiceError(w, r, err, "complete work item")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"work_item": item,
			"bucket":    Classify(*item),
		})
	}
}

// HandleMarkPaid handles PUT /api/v1/companies/{company_id}/work-items/{item_id}/mark-paid
func HandleMarkPaid(pool *pgxpool.Pool, table *access.Table, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, itemID, ok := parseIDs(w, r)
		if !ok {
			return
		}

		var req MarkPaidRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		var paidAt *time.Time
		if strings.TrimSpace(req.PaidAt) != "" {
			parsed, err := validation.ParseTimestamp(req.PaidAt)
			if err != nil {
				apperrors.WriteBadRequest(w, r, "Invalid paid_at timestamp")
				return
			}
			paidAt = &parsed
		}
		if err := validation.ValidatePaymentMethod(req.PaymentMethod); err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		service := newService(pool, table, auditor)
		item, err := service.MarkPaid(ctx, companyID, userID, itemID, paidAt, req.PaymentMethod)
		if err != nil {
			writeServiceError(w, r, err, "mark work item paid")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"work_item": item,
			"bucket":    Classify(*item),
		})
	}
}

// HandleArchive handles PUT /api/v1/companies/{company_id}/work-items/{item_id}/archive
func HandleArchive(pool *pgxpool.Pool, table *access.Table, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, itemID, ok := parseIDs(w, r)
		if !ok {
			return
		}

		service := newService(pool, table, auditor)
		item, err := service.Archive(ctx, companyID, userID, itemID)
		if err != nil {
			writeServiceError(w, r, err, "archive work item")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"work_item": item,
			"bucket":    Classify(*item),
		})
	}
}

// HandleListAudit handles GET /api/v1/companies/{company_id}/work-items/{item_id}/audit
func HandleListAudit(pool *pgxpool.Pool, table *access.Table, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, itemID, ok := parseIDs(w, r)
		if !ok {
			return
		}

		// Confirm the item exists and the caller may view it before
		// exposing its trail.
		service := newService(pool, table, auditor)
		if _, err := service.Get(ctx, companyID, userID, itemID); err != nil {
			writeServiceError(w, r, err, "load work item")
			return
		}

		reader := audit.NewReader(pool)
		entries, err := reader.ListByWorkItem(ctx, itemID, 50)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list audit trail")
			apperrors.WriteInternalError(w, r, "Failed to list audit trail")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"entries": entries,
		})
	}
}

func parseIDs(w http.ResponseWriter, r *http.Request) (companyID, itemID uuid.UUID, ok bool) {
	companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid company ID")
		return uuid.Nil, uuid.Nil, false
	}
	itemID, err = uuid.Parse(chi.URLParam(r, "item_id"))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid work item ID")
		return uuid.Nil, uuid.Nil, false
	}
	return companyID, itemID, true
}
