package access

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fieldops/fieldops/internal/apperrors"
	"github.com/fieldops/fieldops/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrNoMembership is returned by a RoleResolver when the user has no
// membership in the company.
var ErrNoMembership = errors.New("user is not a member of this company")

// RoleResolver looks up a user's role within a company.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID, companyID uuid.UUID) (Role, error)
}

type roleContextKey struct{}

// RoleFromContext returns the role resolved by a guard for the current
// request, or an empty role if no guard ran.
func RoleFromContext(ctx context.Context) Role {
	role, ok := ctx.Value(roleContextKey{}).(Role)
	if !ok {
		return ""
	}
	return role
}

// withRole stores the resolved role in the request context.
func withRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, roleContextKey{}, role)
}

// RequirePermission guards a route on a permission check against the
// static table. Until the caller's role is resolved the request is treated
// as not permitted: resolution errors and timeouts deny, never allow.
// Resolution is bounded by resolveTimeout so a slow lookup cannot hold the
// request indefinitely.
func RequirePermission(resolver RoleResolver, table *Table, perm Permission, resolveTimeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := resolveRequestRole(w, r, resolver, resolveTimeout)
			if !ok {
				return
			}

			if !table.HasPermission(role, perm) {
				log.Warn().
					Str("role", string(role)).
					Str("permission", string(perm)).
					Str("path", r.URL.Path).
					Msg("Permission denied")
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r.WithContext(withRole(r.Context(), role)))
		})
	}
}

// RequireRole guards a route on membership in an allowed-role list. The
// list uses the same canonical role set as the permission table.
func RequireRole(resolver RoleResolver, resolveTimeout time.Duration, allowed ...Role) func(http.Handler) http.Handler {
	allowedSet := make(map[Role]bool, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := resolveRequestRole(w, r, resolver, resolveTimeout)
			if !ok {
				return
			}

			if !allowedSet[role] {
				log.Warn().
					Str("role", string(role)).
					Str("path", r.URL.Path).
					Msg("Role not allowed")
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r.WithContext(withRole(r.Context(), role)))
		})
	}
}

// resolveRequestRole extracts the actor and company from the request and
// resolves the actor's role. It writes the error response and returns
// ok=false when the request must not proceed.
func resolveRequestRole(w http.ResponseWriter, r *http.Request, resolver RoleResolver, resolveTimeout time.Duration) (Role, bool) {
	userID := auth.GetUserID(r.Context())
	if userID == uuid.Nil {
		apperrors.WriteUnauthorized(w, r, "Authentication required")
		return "", false
	}

	companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid company ID")
		return "", false
	}

	ctx, cancel := context.WithTimeout(r.Context(), resolveTimeout)
	defer cancel()

	role, err := resolver.ResolveRole(ctx, userID, companyID)
	if err != nil {
		if errors.Is(err, ErrNoMembership) {
			apperrors.WriteNotFound(w, r, "Company not found")
			return "", false
		}
		log.Error().Err(err).
			Str("user_id", userID.String()).
			Str("company_id", companyID.String()).
			Msg("Role resolution failed")
		apperrors.WriteForbidden(w, r, "Insufficient permissions")
		return "", false
	}

	return role, true
}
