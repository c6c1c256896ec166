package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cras-gestao/gestao-suas/internal/httputil"
	"github.com/cras-gestao/gestao-suas/internal/metrics"
	"github.com/cras-gestao/gestao-suas/pkg/auth"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// Authenticator verifies the Authorization header against the resolved tenant.
type Authenticator interface {
	Authenticate(ctx context.Context, tenant *domain.Tenant, authorization string) (*auth.Session, error)
}

// Auth creates middleware that authenticates the bearer token. The tenant is
// taken from the context set by Tenant; on routes without one (the /v1/system
// group) only system tenant tokens are accepted.
func Auth(gateway Authenticator, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant, _ := GetTenant(r.Context())

			sess, err := gateway.Authenticate(r.Context(), tenant, r.Header.Get("Authorization"))
			if err != nil {
				code := httputil.ErrorCode(err)
				if m != nil {
					m.AuthFailures.WithLabelValues(code).Inc()
				}
				if code == "tenant_mismatch" {
					logger.Warn("cross-tenant token rejected",
						"path", r.URL.Path,
						"tenant_id", tenantID(tenant),
						"ip", httputil.ClientIP(r),
					)
				}
				httputil.WriteError(w, r, logger, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

func tenantID(t *domain.Tenant) int64 {
	if t == nil {
		return domain.SystemTenantID
	}
	return t.ID
}
