package httputil

import (
	"net/http"
	"time"
)

const refreshCookieName = "refresh_token"

// CookieConfig holds cookie configuration.
type CookieConfig struct {
	Path     string
	Secure   bool // true in production (HTTPS)
	SameSite http.SameSite
}

// DefaultCookieConfig returns the refresh cookie settings. The cookie is scoped
// to the auth routes of the tenant host that issued it.
func DefaultCookieConfig(secure bool) CookieConfig {
	return CookieConfig{
		Path:     "/v1/auth",
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// SystemCookieConfig returns the refresh cookie settings for platform
// administrator sessions, scoped to the /v1/system/auth routes.
func SystemCookieConfig(secure bool) CookieConfig {
	cfg := DefaultCookieConfig(secure)
	cfg.Path = "/v1/system/auth"
	return cfg
}

// SetRefreshCookie stores the refresh token in an HttpOnly cookie for browser clients.
func SetRefreshCookie(w http.ResponseWriter, token string, ttl time.Duration, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     cfg.Path,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

// ClearRefreshCookie removes the refresh cookie.
func ClearRefreshCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     cfg.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

// RefreshTokenFromCookie extracts the refresh token from its cookie.
func RefreshTokenFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// IsMobileClient checks if request is from a mobile client.
// Mobile clients set X-Client-Type: mobile and keep the refresh token themselves.
func IsMobileClient(r *http.Request) bool {
	return r.Header.Get("X-Client-Type") == "mobile"
}
