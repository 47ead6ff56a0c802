package app

import (
	"net/http"
	"time"

	"github.com/fieldops/fieldops/internal/access"
	"github.com/fieldops/fieldops/internal/apperrors"
	"github.com/fieldops/fieldops/internal/audit"
	"github.com/fieldops/fieldops/internal/auth"
	"github.com/fieldops/fieldops/internal/backend"
	"github.com/fieldops/fieldops/internal/companies"
	"github.com/fieldops/fieldops/internal/config"
	"github.com/fieldops/fieldops/internal/workitems"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(pool *pgxpool.Pool, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	isProduction := !cfg.IsDev()

	// Middleware stack
	r.Use(middleware.RealIP)             // Set RemoteAddr to real IP
	r.Use(apperrors.RequestIDMiddleware) // Add request ID to context
	r.Use(LoggingMiddleware)             // Structured request logging
	r.Use(RecoveryMiddleware)            // Recover from panics
	r.Use(cors.Handler(cors.Options{     // CORS (pinned dep)
		AllowedOrigins:   []string{cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.AuthMiddleware(cfg.JWTSecret, isProduction)) // Validate session cookies

	// Shared collaborators. The permission table is built once and
	// injected everywhere; nothing consults it as a global.
	table := access.NewTable()
	auditor := audit.NewWriter(pool)
	resolver := companies.NewService(pool, table)
	backendClient := backend.NewClient(cfg.BackendURL, cfg.BackendTimeoutMS)
	resolveTimeout := time.Duration(cfg.RoleResolveTimeoutMS) * time.Millisecond

	// Health check routes (no authentication required)
	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(pool))

	// API routes - Authentication
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)              // Set Content-Type to application/json
		r.Use(CSRFMiddleware(isProduction)) // Validate CSRF tokens

		r.Post("/signup", auth.HandleSignup(pool))

		// Login with rate limiting (10 requests per minute)
		r.With(LoginRateLimitMiddleware()).Post("/login", auth.HandleLogin(pool, cfg.JWTSecret, cfg.SessionDays, isProduction))

		// Logout (requires authentication)
		r.With(auth.RequireAuth).Post("/logout", auth.HandleLogout(isProduction))
	})

	// API routes - Companies (require authentication)
	r.Route("/api/v1/companies", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware(isProduction))
		r.Use(APIRateLimitMiddleware(cfg.RateLimitRPM))
		r.Use(auth.RequireAuth)

		// Company CRUD
		r.Post("/", companies.HandleCreate(pool, table, auditor))
		r.Get("/", companies.HandleList(pool, table))
		r.Get("/{company_id}", companies.HandleGet(pool, table))

		// Members
		r.Get("/{company_id}/members", companies.HandleListMembers(pool, table))
		r.Put("/{company_id}/members/{user_id}", companies.HandleUpdateMemberRole(pool, table, auditor))
		r.Delete("/{company_id}/members/{user_id}", companies.HandleRemoveMember(pool, table, auditor))

		// Invites
		r.Post("/{company_id}/invites", companies.HandleCreateInvite(pool, table, auditor))
		r.Get("/{company_id}/invites", companies.HandleListInvites(pool, table))
		r.Delete("/{company_id}/invites/{invite_id}", companies.HandleRevokeInvite(pool, table, auditor))
		r.Post("/invites/accept", companies.HandleAcceptInvite(pool, table, auditor))

		// Company audit log
		r.Get("/{company_id}/audit", companies.HandleListAudit(pool, table))

		// Work items and lifecycle transitions. The services re-check
		// permissions at the transition boundary; these routes only add
		// auth and CSRF.
		r.Route("/{company_id}/work-items", func(r chi.Router) {
			r.Post("/", workitems.HandleCreate(pool, table, auditor))
			r.Get("/", workitems.HandleList(pool, table, auditor))
			r.Get("/stats", workitems.HandleStats(pool, table, auditor))
			r.Get("/{item_id}", workitems.HandleGet(pool, table, auditor))
			r.Get("/{item_id}/audit", workitems.HandleListAudit(pool, table, auditor))
			r.Put("/{item_id}/schedule", workitems.HandleSchedule(pool, table, auditor))
			r.Put("/{item_id}/complete", workitems.HandleComplete(pool, table, auditor))
			r.Put("/{item_id}/mark-paid", workitems.HandleMarkPaid(pool, table, auditor))
			r.Put("/{item_id}/archive", workitems.HandleArchive(pool, table, auditor))
		})

		// Backend sidecar routes, gated by route-level permission guards.
		r.With(access.RequirePermission(resolver, table, access.PermCreateQuotes, resolveTimeout)).
			Post("/{company_id}/ai/job-name", backend.HandleGenerateJobName(backendClient))
		r.With(access.RequirePermission(resolver, table, access.PermManagePricing, resolveTimeout)).
			Post("/{company_id}/catalog/reindex", backend.HandleReindexCatalog(backendClient))
	})

	return r
}

// handleHealthz returns a simple liveness check
// Always returns 200 OK if the service is running
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz returns a readiness check that includes database connectivity
// Returns 200 OK if service is ready to accept traffic, 503 if not
func handleReadyz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Check database connectivity
		if err := pool.Ping(r.Context()); err != nil {
			apperrors.WriteServiceUnavailable(w, r, "Database connection failed")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
			"db":     "ok",
		})
	}
}
