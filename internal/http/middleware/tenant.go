package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cras-gestao/gestao-suas/internal/httputil"
	"github.com/cras-gestao/gestao-suas/internal/metrics"
	"github.com/cras-gestao/gestao-suas/pkg/auth"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// ExpiresInHeader tells the client how many days are left before the tenant expires.
const ExpiresInHeader = "X-Tenant-Expires-In"

// TenantResolver resolves the tenant addressed by a request host.
type TenantResolver interface {
	Resolve(ctx context.Context, host string) (*auth.Resolution, error)
	IsMarketingHost(host string) bool
}

// Tenant creates middleware that resolves the tenant from the Host header and
// stores it in the request context. Requests to the marketing host are
// redirected to signupURL.
func Tenant(resolver TenantResolver, signupURL string, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := resolver.Resolve(r.Context(), r.Host)
			if err != nil {
				recordResolution(m, err)
				if errors.Is(err, domain.ErrSignupRedirect) && signupURL != "" {
					http.Redirect(w, r, signupURL, http.StatusFound)
					return
				}
				var expired *domain.TenantExpiredError
				if errors.As(err, &expired) {
					logger.Info("request to expired tenant",
						"subdomain", expired.Subdomain,
						"days_overdue", expired.DaysOverdue,
					)
				}
				httputil.WriteError(w, r, logger, err)
				return
			}
			recordResolution(m, nil)

			if res.NearExpiry {
				w.Header().Set(ExpiresInHeader, strconv.Itoa(res.DaysRemaining))
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), res.Tenant)))
		})
	}
}

// MarketingOnly creates middleware that only lets requests for the marketing
// host through. Tenant hosts get 404.
func MarketingOnly(resolver TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !resolver.IsMarketingHost(r.Host) {
				httputil.Error(w, http.StatusNotFound, "not_found", "not found")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func recordResolution(m *metrics.Metrics, err error) {
	if m == nil {
		return
	}
	outcome := "resolved"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSignupRedirect):
		outcome = "signup_redirect"
	default:
		outcome = httputil.ErrorCode(err)
	}
	m.TenantResolutions.WithLabelValues(outcome).Inc()
}
