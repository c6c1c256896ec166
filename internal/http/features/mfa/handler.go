package mfa

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cras-gestao/gestao-suas/internal/http/middleware"
	"github.com/cras-gestao/gestao-suas/internal/httputil"
	"github.com/cras-gestao/gestao-suas/pkg/auth"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// Handler handles self-service TOTP enrollment.
type Handler struct {
	logger         *slog.Logger
	totpService    *auth.TOTPService
	sessionService *auth.SessionService
}

// NewHandler creates a new MFA handler.
func NewHandler(logger *slog.Logger, totpService *auth.TOTPService, sessionService *auth.SessionService) *Handler {
	return &Handler{
		logger:         logger,
		totpService:    totpService,
		sessionService: sessionService,
	}
}

// RegisterRoutes registers the /v1/me/totp routes. r must already carry the
// auth middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/v1/me/totp", h.Status)
	r.Post("/v1/me/totp/setup", h.Setup)
	r.Post("/v1/me/totp/enable", h.Enable)
	r.Post("/v1/me/totp/disable", h.Disable)
}

// StatusResponse reports whether the caller has a second factor.
type StatusResponse struct {
	Enabled bool `json:"enabled"`
}

// Status handles GET /v1/me/totp
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteError(w, r, h.logger, domain.ErrUnauthenticated)
		return
	}

	user, err := h.sessionService.CurrentUser(r.Context(), p)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, StatusResponse{Enabled: user.HasTOTP()})
}

// SetupRequest starts an enrollment. Code is required when a factor is
// already enrolled, since the new one replaces it.
type SetupRequest struct {
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
}

// Setup handles POST /v1/me/totp/setup. Nothing is stored until Enable.
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteError(w, r, h.logger, domain.ErrUnauthenticated)
		return
	}

	var req SetupRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	user, err := h.sessionService.CheckPassword(r.Context(), p, req.Password)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.checkCurrentCode(user, req.Code); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	enrollment, err := h.totpService.Begin(user)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, enrollment)
}

// EnableRequest confirms an enrollment started by Setup.
type EnableRequest struct {
	Pending string `json:"pending"`
	Code    string `json:"code"`
}

// Enable handles POST /v1/me/totp/enable
func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteError(w, r, h.logger, domain.ErrUnauthenticated)
		return
	}

	var req EnableRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if err := h.totpService.Confirm(r.Context(), p.UserID, req.Pending, req.Code); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	h.logger.Info("totp enabled", "user_id", p.UserID, "tenant_id", p.TenantID)
	httputil.JSON(w, http.StatusOK, StatusResponse{Enabled: true})
}

// DisableRequest removes the caller's second factor.
type DisableRequest struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

// Disable handles POST /v1/me/totp/disable
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteError(w, r, h.logger, domain.ErrUnauthenticated)
		return
	}

	var req DisableRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	user, err := h.sessionService.CheckPassword(r.Context(), p, req.Password)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	if !user.HasTOTP() {
		httputil.JSON(w, http.StatusOK, StatusResponse{Enabled: false})
		return
	}
	if err := h.checkCurrentCode(user, req.Code); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	if err := h.totpService.Disable(r.Context(), user.ID); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	h.logger.Info("totp disabled", "user_id", user.ID, "tenant_id", user.TenantID)
	httputil.JSON(w, http.StatusOK, StatusResponse{Enabled: false})
}

// checkCurrentCode validates code against the enrolled factor, if any.
func (h *Handler) checkCurrentCode(user *domain.User, code string) error {
	if !user.HasTOTP() {
		return nil
	}
	if code == "" {
		return domain.ErrMFARequired
	}
	valid, err := h.totpService.Validate(user, code)
	if err != nil {
		return err
	}
	if !valid {
		return domain.ErrInvalidOTP
	}
	return nil
}
