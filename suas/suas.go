// Package suas embeds the Gestao SUAS tenant and access core in another Go
// service, so that application modules (familias, atendimentos, relatorios)
// share tenant resolution, authentication and the permission matrix.
//
// Setup:
//
//  1. Apply the schema with `suas-admin migrate`
//  2. Create a Core and mount its handler, then protect your own routes
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "host=localhost dbname=gestao_suas sslmode=disable")
//
//	core, err := suas.New(ctx, suas.Config{
//	    DB:         db,
//	    JWTSecret:  "your-secret-key-at-least-32-chars",
//	    BaseDomain: "gestaosuas.com.br",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if the schema has not been applied
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/", core.Handler())
//	r.Group(func(r chi.Router) {
//	    r.Use(core.Protect())
//	    r.With(core.Require("familias", domain.ActionView)).Get("/v1/familias", listFamilias)
//	})
package suas

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/cras-gestao/gestao-suas/internal/config"
	httpserver "github.com/cras-gestao/gestao-suas/internal/http"
	"github.com/cras-gestao/gestao-suas/internal/http/middleware"
	"github.com/cras-gestao/gestao-suas/internal/metrics"
	"github.com/cras-gestao/gestao-suas/pkg/auth"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
	"github.com/cras-gestao/gestao-suas/pkg/repository"
)

// Config holds the configuration of an embedded core.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// JWTSecret signs session tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in tokens (default: "gestao-suas").
	JWTIssuer string

	// BaseDomain is the marketing domain; tenants live on its subdomains (required).
	BaseDomain string

	// SignupURL receives requests for the marketing host on tenant routes (optional).
	SignupURL string

	// AccessTokenTTL is the lifetime of access tokens (default: 8 hours).
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the lifetime of refresh tokens (default: 7 days).
	RefreshTokenTTL time.Duration

	// Production rejects localhost and IP hosts instead of mapping them to the demo tenant.
	Production bool

	// Redis enables the login limiter and the token denylist (optional).
	Redis *redis.Client

	// Metrics records HTTP and auth metrics (optional).
	Metrics *metrics.Metrics

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// Core is an embedded tenant and access core.
type Core struct {
	config      Config
	resolver    *auth.TenantResolver
	gateway     *auth.Gateway
	permissions *auth.PermissionEvaluator
	sessions    *auth.SessionService
	handler     http.Handler
}

// New creates a core. It returns an error if the schema has not been applied.
func New(ctx context.Context, cfg Config) (*Core, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := repository.ValidateSchema(ctx, cfg.DB); err != nil {
		return nil, err
	}

	usersRepo := repository.NewUsersRepository(cfg.DB)
	tenantsRepo := repository.NewTenantsRepository(cfg.DB)

	hasher, err := auth.NewPasswordHasher(0, 0)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return nil, err
	}

	var (
		revoker auth.Revoker
		limiter auth.LoginLimiter
	)
	if cfg.Redis != nil {
		revoker = auth.NewRedisRevoker(cfg.Redis, "gestao-suas:revoked")
		limiter = auth.NewRedisLoginLimiter(cfg.Redis, 0, 0)
	}

	permissions := auth.NewPermissionEvaluator(repository.NewPermissionsRepository(cfg.DB))
	resolver := auth.NewTenantResolver(tenantsRepo, auth.TenantResolverConfig{
		BaseDomain: cfg.BaseDomain,
		Production: cfg.Production,
	})
	sessions := auth.NewSessionService(auth.SessionDeps{
		Users:       usersRepo,
		Hasher:      hasher,
		Tokens:      tokens,
		Permissions: permissions,
		Revoker:     revoker,
		Limiter:     limiter,
		Logger:      cfg.Logger,
	})
	gateway := auth.NewGateway(tokens, usersRepo, revoker, cfg.Logger)

	c := &Core{
		config:      cfg,
		resolver:    resolver,
		gateway:     gateway,
		permissions: permissions,
		sessions:    sessions,
	}
	c.handler = httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          cfg.Logger,
		Metrics:         cfg.Metrics,
		Resolver:        resolver,
		Gateway:         gateway,
		Permissions:     permissions,
		SessionService:  sessions,
		UserService:     auth.NewUserService(cfg.DB, usersRepo, tenantsRepo, sessions, cfg.Logger),
		TenantService:   auth.NewTenantService(cfg.DB, tenantsRepo, usersRepo, sessions, resolver, auth.TenantServiceConfig{}, cfg.Logger),
		BaseDomain:      cfg.BaseDomain,
		SignupURL:       cfg.SignupURL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		CookieSecure:    cfg.Production,
		MaxRequestBytes: 1 << 20,
		RateLimitConfig: config.RateLimitConfig{
			Enabled:                  true,
			AuthRequestsPerMinute:    10,
			AuthWindowMinutes:        1,
			RefreshRequestsPerMinute: 30,
			RefreshWindowMinutes:     1,
			SignupRequestsPerWindow:  5,
			SignupWindowMinutes:      60,
			APIRequestsPerMinute:     300,
		},
		SecurityHeaders: config.SecurityHeadersConfig{
			Enabled:            true,
			FrameOptions:       "DENY",
			ContentTypeOptions: "nosniff",
			ReferrerPolicy:     "strict-origin-when-cross-origin",
		},
	})
	return c, nil
}

// Handler returns the core routes: health, signup, session and user and
// tenant administration.
func (c *Core) Handler() http.Handler {
	return c.handler
}

// Protect returns middleware that resolves the tenant from the Host header and
// authenticates the request against it. Tokens of another tenant are rejected.
//
//	r.Group(func(r chi.Router) {
//	    r.Use(core.Protect())
//	    r.Get("/v1/familias", handler)
//	})
func (c *Core) Protect() func(http.Handler) http.Handler {
	tenant := middleware.Tenant(c.resolver, c.config.SignupURL, c.config.Metrics, c.config.Logger)
	authenticate := middleware.Auth(c.gateway, c.config.Metrics, c.config.Logger)
	return func(next http.Handler) http.Handler {
		return tenant(authenticate(next))
	}
}

// Require returns middleware that allows the request only if the principal may
// perform action on module. Use after Protect. The evaluated grant is available
// through Grant.
func (c *Core) Require(module string, action domain.Action) func(http.Handler) http.Handler {
	return middleware.RequirePermission(c.permissions, module, action, c.config.Logger)
}

// Can reports whether p may perform action on module.
func (c *Core) Can(ctx context.Context, p *domain.Principal, module string, action domain.Action) (bool, error) {
	return c.permissions.Can(ctx, p, module, action)
}

// SessionService returns the session service for advanced usage.
func (c *Core) SessionService() *auth.SessionService {
	return c.sessions
}

// Principal returns the authenticated principal. Use after Protect.
func Principal(r *http.Request) (*domain.Principal, bool) {
	return middleware.GetPrincipal(r.Context())
}

// Tenant returns the tenant resolved for the request. Use after Protect.
func Tenant(r *http.Request) (*domain.Tenant, bool) {
	return middleware.GetTenant(r.Context())
}

// Grant returns the grant evaluated by Require. When UnitRestricted is set,
// records must be filtered to the principal's unit.
func Grant(r *http.Request) (domain.Grant, bool) {
	return middleware.GetGrant(r.Context())
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("suas: DB is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("suas: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("suas: JWTSecret must be at least 32 characters")
	}
	if cfg.BaseDomain == "" {
		return errors.New("suas: BaseDomain is required")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "gestao-suas"
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL == 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}
