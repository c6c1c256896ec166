package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/cras-gestao/gestao-suas/internal/config"
	"github.com/cras-gestao/gestao-suas/internal/httputil"
)

// Limiter names returned by CreateRateLimiters.
const (
	LimiterAuth    = "auth"
	LimiterRefresh = "refresh"
	LimiterSignup  = "signup"
	LimiterAPI     = "api"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	KeyFunc  httprate.KeyFunc // defaults to the client IP
	Logger   *slog.Logger
}

// RateLimit creates a rate limiter middleware with logging.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = KeyByClientIP
	}
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"ip", httputil.ClientIP(r),
					"path", r.URL.Path,
					"method", r.Method,
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, please try again later")
		}),
	)
}

// KeyByClientIP keys requests by the caller address resolved by RealIP.
func KeyByClientIP(r *http.Request) (string, error) {
	return httputil.ClientIP(r), nil
}

// KeyByPrincipal keys authenticated requests by tenant and user so one
// tenant's traffic cannot exhaust another's budget. Requests without a
// session fall back to the client IP.
func KeyByPrincipal(r *http.Request) (string, error) {
	p, ok := GetPrincipal(r.Context())
	if !ok {
		return "ip:" + httputil.ClientIP(r), nil
	}
	return "user:" + strconv.FormatInt(p.TenantID, 10) + ":" + strconv.FormatInt(p.UserID, 10), nil
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// CreateRateLimiters creates rate limiting middleware functions based on configuration.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) map[string]func(http.Handler) http.Handler {
	if !cfg.Enabled {
		noOp := NoRateLimit()
		return map[string]func(http.Handler) http.Handler{
			LimiterAuth:    noOp,
			LimiterRefresh: noOp,
			LimiterSignup:  noOp,
			LimiterAPI:     noOp,
		}
	}

	return map[string]func(http.Handler) http.Handler{
		LimiterAuth: RateLimit(RateLimitConfig{
			Requests: cfg.AuthRequestsPerMinute,
			Window:   time.Duration(cfg.AuthWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
		LimiterRefresh: RateLimit(RateLimitConfig{
			Requests: cfg.RefreshRequestsPerMinute,
			Window:   time.Duration(cfg.RefreshWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
		LimiterSignup: RateLimit(RateLimitConfig{
			Requests: cfg.SignupRequestsPerWindow,
			Window:   time.Duration(cfg.SignupWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
		LimiterAPI: RateLimit(RateLimitConfig{
			Requests: cfg.APIRequestsPerMinute,
			Window:   time.Minute,
			KeyFunc:  KeyByPrincipal,
			Logger:   logger,
		}),
	}
}
