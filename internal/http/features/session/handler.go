package session

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cras-gestao/gestao-suas/internal/http/middleware"
	"github.com/cras-gestao/gestao-suas/internal/httputil"
	"github.com/cras-gestao/gestao-suas/internal/metrics"
	"github.com/cras-gestao/gestao-suas/pkg/auth"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// Handler handles session endpoints.
type Handler struct {
	logger         *slog.Logger
	sessionService *auth.SessionService
	metrics        *metrics.Metrics
	cookieConfig   httputil.CookieConfig
	systemCookies  httputil.CookieConfig
	refreshTTL     time.Duration
}

// NewHandler creates a new session handler. m may be nil.
func NewHandler(logger *slog.Logger, sessionService *auth.SessionService, m *metrics.Metrics, refreshTTL time.Duration, cookieSecure bool) *Handler {
	return &Handler{
		logger:         logger,
		sessionService: sessionService,
		metrics:        m,
		cookieConfig:   httputil.DefaultCookieConfig(cookieSecure),
		systemCookies:  httputil.SystemCookieConfig(cookieSecure),
		refreshTTL:     refreshTTL,
	}
}

// LoginRequest represents a login request. Username and email are accepted
// as aliases of identifier.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username,omitempty"`
	Email      string `json:"email,omitempty"`
	Password   string `json:"password"`
	OTP        string `json:"otp,omitempty"`
}

// RefreshRequest represents a token refresh request (for mobile clients).
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest represents a logout request (for mobile clients).
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ChangePasswordRequest represents a password change by the session owner.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// TenantView is the tenant as returned to clients.
type TenantView struct {
	ID        int64               `json:"id"`
	Subdomain string              `json:"subdomain"`
	Name      string              `json:"name"`
	Status    domain.TenantStatus `json:"status"`
	ExpiresAt *time.Time          `json:"expiresAt,omitempty"`
}

// LoginResponse represents a successful login or refresh.
type LoginResponse struct {
	Success      bool              `json:"success"`
	Token        string            `json:"token"`
	RefreshToken string            `json:"refreshToken,omitempty"`
	ExpiresIn    int               `json:"expiresIn"`
	Principal    *domain.Principal `json:"principal"`
	Permissions  []string          `json:"permissions"`
	Tenant       *TenantView       `json:"tenant,omitempty"`
}

// VerifyResponse describes the current session.
type VerifyResponse struct {
	Success bool `json:"success"`
	*auth.SessionInfo
}

// Login authenticates a user of the tenant addressed by the host.
// POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	tenant, ok := middleware.GetTenant(r.Context())
	if !ok {
		httputil.WriteError(w, r, h.logger, domain.ErrInvalidHost)
		return
	}
	h.login(w, r, tenant)
}

// SystemLogin authenticates a platform administrator. Verify, Refresh, Logout
// and ChangePassword serve the system tenant as well when no tenant was
// resolved for the request.
// POST /v1/system/auth/login
func (h *Handler) SystemLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, nil)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, tenant *domain.Tenant) {
	var req LoginRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Username
	}
	if identifier == "" {
		identifier = req.Email
	}

	result, err := h.sessionService.Login(r.Context(), auth.LoginInput{
		Identifier: identifier,
		Password:   req.Password,
		OTP:        req.OTP,
		Tenant:     tenant,
		IP:         httputil.ClientIP(r),
	})
	h.recordLogin(err)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	h.writeLoginResponse(w, r, result)
}

// Verify returns the current session.
// GET /v1/auth/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteError(w, r, h.logger, domain.ErrUnauthenticated)
		return
	}

	info, err := h.sessionService.Verify(r.Context(), p)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, VerifyResponse{Success: true, SessionInfo: info})
}

// Refresh issues a new access token.
// POST /v1/auth/refresh
//
// For web clients: Reads the refresh token from its cookie.
// For mobile clients: Reads it from the request body.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var refreshToken string

	if httputil.IsMobileClient(r) {
		var req RefreshRequest
		if !httputil.DecodeJSON(w, r, &req) {
			return
		}
		refreshToken = req.RefreshToken
	} else {
		refreshToken, _ = httputil.RefreshTokenFromCookie(r)
	}

	if refreshToken == "" {
		httputil.WriteError(w, r, h.logger, domain.ErrUnauthenticated)
		return
	}

	tenant, _ := middleware.GetTenant(r.Context())
	result, err := h.sessionService.Refresh(r.Context(), refreshToken, tenant)
	if err != nil {
		if !httputil.IsMobileClient(r) && isDeadToken(err) {
			httputil.ClearRefreshCookie(w, h.cookies(r))
		}
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	h.writeLoginResponse(w, r, result)
}

// Logout ends the current session.
// POST /v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSession(r.Context())
	if !ok {
		httputil.WriteError(w, r, h.logger, domain.ErrUnauthenticated)
		return
	}

	var refreshToken string
	if httputil.IsMobileClient(r) {
		if r.ContentLength != 0 {
			var req LogoutRequest
			if !httputil.DecodeJSON(w, r, &req) {
				return
			}
			refreshToken = req.RefreshToken
		}
	} else {
		refreshToken, _ = httputil.RefreshTokenFromCookie(r)
		httputil.ClearRefreshCookie(w, h.cookies(r))
	}

	if err := h.sessionService.Logout(r.Context(), sess, refreshToken); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword replaces the caller's password.
// POST /v1/auth/password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteError(w, r, h.logger, domain.ErrUnauthenticated)
		return
	}

	var req ChangePasswordRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		httputil.Error(w, http.StatusBadRequest, "invalid_input", "currentPassword and newPassword are required")
		return
	}

	if err := h.sessionService.ChangePassword(r.Context(), p, req.CurrentPassword, req.NewPassword); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeLoginResponse returns the access token in the body. The refresh token
// goes into an HttpOnly cookie for web clients and into the body for mobile ones.
func (h *Handler) writeLoginResponse(w http.ResponseWriter, r *http.Request, result *auth.LoginResult) {
	resp := LoginResponse{
		Success:     true,
		Token:       result.Access.Token,
		ExpiresIn:   expiresIn(result.Access.Claims),
		Principal:   result.Principal,
		Permissions: result.Permissions,
	}
	if result.Tenant != nil {
		resp.Tenant = &TenantView{
			ID:        result.Tenant.ID,
			Subdomain: result.Tenant.Subdomain,
			Name:      result.Tenant.Name,
			Status:    result.Tenant.Status,
			ExpiresAt: result.Tenant.ExpiresAt,
		}
	}

	if result.Refresh != nil {
		if httputil.IsMobileClient(r) {
			resp.RefreshToken = result.Refresh.Token
		} else {
			httputil.SetRefreshCookie(w, result.Refresh.Token, h.refreshTTL, h.cookies(r))
		}
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// cookies picks the refresh cookie scope: the tenant auth routes, or the
// system ones when the request carries no tenant.
func (h *Handler) cookies(r *http.Request) httputil.CookieConfig {
	if _, ok := middleware.GetTenant(r.Context()); ok {
		return h.cookieConfig
	}
	return h.systemCookies
}

func (h *Handler) recordLogin(err error) {
	if h.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = httputil.ErrorCode(err)
	}
	h.metrics.LoginAttempts.WithLabelValues(result).Inc()
}

func isDeadToken(err error) bool {
	return errors.Is(err, domain.ErrTokenInvalid) ||
		errors.Is(err, domain.ErrSessionExpired) ||
		errors.Is(err, domain.ErrPrincipalInvalid) ||
		errors.Is(err, domain.ErrTenantMismatch)
}

func expiresIn(c *auth.Claims) int {
	return int(c.ExpiresAt.Sub(c.IssuedAt.Time).Seconds())
}
