package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cras-gestao/gestao-suas/internal/httputil"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// GrantEvaluator computes a principal's capabilities on a module.
type GrantEvaluator interface {
	Grant(ctx context.Context, p *domain.Principal, module string) (domain.Grant, error)
}

// RequirePermission enforces the permission matrix for one module and action.
// It must be applied after Auth. The evaluated grant is stored in the context
// so handlers can apply unit filtering.
//
// Example usage:
//
//	r.With(middleware.RequirePermission(perms, "usuarios", domain.ActionCreate, logger)).
//	  Post("/v1/users", usersHandler.Create)
func RequirePermission(perms GrantEvaluator, module string, action domain.Action, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipal(r.Context())
			if !ok {
				httputil.WriteError(w, r, logger, domain.ErrUnauthenticated)
				return
			}

			grant, err := perms.Grant(r.Context(), p, module)
			if err != nil {
				httputil.WriteError(w, r, logger, err)
				return
			}
			if !grant.Capabilities.Allows(action) {
				httputil.WriteError(w, r, logger, domain.ErrPermissionDenied)
				return
			}

			ctx := context.WithValue(r.Context(), GrantKey, grant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSuperAdmin only lets platform administrators of the system tenant
// through. It must be applied after Auth.
func RequireSuperAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipal(r.Context())
			if !ok {
				httputil.WriteError(w, r, logger, domain.ErrUnauthenticated)
				return
			}
			if !p.IsSuperAdmin() {
				httputil.WriteError(w, r, logger, domain.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
