package tenants

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cras-gestao/gestao-suas/internal/httputil"
	"github.com/cras-gestao/gestao-suas/pkg/auth"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// Handler handles self-service signup and platform tenant administration.
type Handler struct {
	logger     *slog.Logger
	tenants    *auth.TenantService
	baseDomain string
}

// NewHandler creates a new tenants handler. baseDomain is used to build the
// login URL returned after signup.
func NewHandler(logger *slog.Logger, tenants *auth.TenantService, baseDomain string) *Handler {
	return &Handler{logger: logger, tenants: tenants, baseDomain: baseDomain}
}

// TenantView is a tenant as returned to clients.
type TenantView struct {
	ID           int64               `json:"id"`
	Subdomain    string              `json:"subdomain"`
	Name         string              `json:"name"`
	ContactEmail string              `json:"contactEmail,omitempty"`
	Status       domain.TenantStatus `json:"status"`
	Plan         string              `json:"plan"`
	MaxUsers     int                 `json:"maxUsers"`
	ExpiresAt    *time.Time          `json:"expiresAt,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
}

func toView(t *domain.Tenant) TenantView {
	return TenantView{
		ID:           t.ID,
		Subdomain:    t.Subdomain,
		Name:         t.Name,
		ContactEmail: t.ContactEmail,
		Status:       t.Status,
		Plan:         t.Plan,
		MaxUsers:     t.MaxUsers,
		ExpiresAt:    t.ExpiresAt,
		CreatedAt:    t.CreatedAt,
	}
}

// SignupRequest represents a self-service signup.
type SignupRequest struct {
	Subdomain    string      `json:"subdomain"`
	Name         string      `json:"name"`
	ContactEmail string      `json:"contactEmail"`
	Admin        AdminFields `json:"admin"`
}

// AdminFields describes the first administrator of a new tenant.
type AdminFields struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateRequest represents a tenant created by a platform administrator.
type CreateRequest struct {
	Subdomain    string              `json:"subdomain"`
	Name         string              `json:"name"`
	ContactEmail string              `json:"contactEmail"`
	Status       domain.TenantStatus `json:"status,omitempty"`
	Plan         string              `json:"plan,omitempty"`
	MaxUsers     int                 `json:"maxUsers,omitempty"`
	ExpiresAt    *time.Time          `json:"expiresAt,omitempty"`
}

// UpdateRequest represents a partial tenant update.
type UpdateRequest struct {
	Name         *string              `json:"name,omitempty"`
	ContactEmail *string              `json:"contactEmail,omitempty"`
	Status       *domain.TenantStatus `json:"status,omitempty"`
	Plan         *string              `json:"plan,omitempty"`
	MaxUsers     *int                 `json:"maxUsers,omitempty"`
	ExpiresAt    *time.Time           `json:"expiresAt,omitempty"`
	ClearExpiry  bool                 `json:"clearExpiry,omitempty"`
}

// Signup creates a trial tenant and its administrator.
// POST /v1/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	tenant, admin, err := h.tenants.Signup(r.Context(), auth.SignupInput{
		Subdomain:     req.Subdomain,
		Name:          req.Name,
		ContactEmail:  req.ContactEmail,
		AdminName:     req.Admin.Name,
		AdminUsername: req.Admin.Username,
		AdminEmail:    req.Admin.Email,
		AdminPassword: req.Admin.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"tenant":   toView(tenant),
		"username": admin.Username,
		"loginUrl": "https://" + tenant.Subdomain + "." + h.baseDomain,
	})
}

// List returns every customer tenant.
// GET /v1/system/tenants
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.tenants.List(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	views := make([]TenantView, 0, len(list))
	for _, t := range list {
		views = append(views, toView(t))
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"success": true, "tenants": views})
}

// Create creates a tenant without users.
// POST /v1/system/tenants
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	tenant, err := h.tenants.Create(r.Context(), auth.CreateTenantInput{
		Subdomain:    req.Subdomain,
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		Status:       req.Status,
		Plan:         req.Plan,
		MaxUsers:     req.MaxUsers,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]any{"success": true, "tenant": toView(tenant)})
}

// Update changes a tenant's status, plan, limits or expiration.
// PATCH /v1/system/tenants/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 0 {
		httputil.WriteError(w, r, h.logger, domain.ErrTenantNotFound)
		return
	}

	var req UpdateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	tenant, err := h.tenants.Update(r.Context(), id, auth.TenantPatch{
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		Status:       req.Status,
		Plan:         req.Plan,
		MaxUsers:     req.MaxUsers,
		ExpiresAt:    req.ExpiresAt,
		ClearExpiry:  req.ClearExpiry,
	})
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{"success": true, "tenant": toView(tenant)})
}
