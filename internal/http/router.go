package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cras-gestao/gestao-suas/internal/config"
	"github.com/cras-gestao/gestao-suas/internal/http/features/mfa"
	"github.com/cras-gestao/gestao-suas/internal/http/features/permissions"
	"github.com/cras-gestao/gestao-suas/internal/http/features/session"
	"github.com/cras-gestao/gestao-suas/internal/http/features/tenants"
	"github.com/cras-gestao/gestao-suas/internal/http/features/users"
	"github.com/cras-gestao/gestao-suas/internal/http/middleware"
	"github.com/cras-gestao/gestao-suas/internal/httputil"
	"github.com/cras-gestao/gestao-suas/internal/metrics"
	"github.com/cras-gestao/gestao-suas/pkg/auth"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics // optional

	Resolver       *auth.TenantResolver
	Gateway        *auth.Gateway
	Permissions    *auth.PermissionEvaluator
	SessionService *auth.SessionService
	UserService    *auth.UserService
	TenantService  *auth.TenantService
	TOTPService    *auth.TOTPService // optional

	BaseDomain      string
	SignupURL       string
	RefreshTokenTTL time.Duration
	CookieSecure    bool
	MaxRequestBytes int64
	CORSOrigins     []string
	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger, cfg.Metrics))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBytes))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)
	authenticated := middleware.Auth(cfg.Gateway, cfg.Metrics, cfg.Logger)

	sessionHandler := session.NewHandler(cfg.Logger, cfg.SessionService, cfg.Metrics, cfg.RefreshTokenTTL, cfg.CookieSecure)
	usersHandler := users.NewHandler(cfg.Logger, cfg.UserService)
	permissionsHandler := permissions.NewHandler(cfg.Logger, cfg.Permissions)
	tenantsHandler := tenants.NewHandler(cfg.Logger, cfg.TenantService, cfg.BaseDomain)

	// Marketing site
	r.Group(func(r chi.Router) {
		r.Use(middleware.MarketingOnly(cfg.Resolver))
		r.Use(rateLimiters[middleware.LimiterSignup])
		tenantsHandler.RegisterSignupRoutes(r)
	})

	// Tenant hosts
	r.Group(func(r chi.Router) {
		r.Use(middleware.Tenant(cfg.Resolver, cfg.SignupURL, cfg.Metrics, cfg.Logger))

		r.With(rateLimiters[middleware.LimiterAuth]).Post("/v1/auth/login", sessionHandler.Login)
		r.With(rateLimiters[middleware.LimiterRefresh]).Post("/v1/auth/refresh", sessionHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.Use(rateLimiters[middleware.LimiterAPI])

			r.Get("/v1/auth/verify", sessionHandler.Verify)
			r.Post("/v1/auth/logout", sessionHandler.Logout)
			r.Post("/v1/auth/password", sessionHandler.ChangePassword)
			r.Get("/v1/permissions/{module}", permissionsHandler.Get)
			usersHandler.RegisterRoutes(r, cfg.Permissions)
			if cfg.TOTPService != nil {
				mfa.NewHandler(cfg.Logger, cfg.TOTPService, cfg.SessionService).RegisterRoutes(r)
			}
		})
	})

	// Platform administration, authenticated against the system tenant
	r.With(rateLimiters[middleware.LimiterAuth]).Post("/v1/system/auth/login", sessionHandler.SystemLogin)
	r.With(rateLimiters[middleware.LimiterRefresh]).Post("/v1/system/auth/refresh", sessionHandler.Refresh)
	r.Group(func(r chi.Router) {
		r.Use(authenticated)
		r.Use(rateLimiters[middleware.LimiterAPI])

		r.Get("/v1/system/auth/verify", sessionHandler.Verify)
		r.Post("/v1/system/auth/logout", sessionHandler.Logout)
		r.Post("/v1/system/auth/password", sessionHandler.ChangePassword)
	})
	r.Group(func(r chi.Router) {
		r.Use(authenticated)
		r.Use(middleware.RequireSuperAdmin(cfg.Logger))
		tenantsHandler.RegisterSystemRoutes(r)
	})

	return r
}
