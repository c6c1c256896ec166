package users

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cras-gestao/gestao-suas/internal/http/middleware"
	"github.com/cras-gestao/gestao-suas/internal/httputil"
	"github.com/cras-gestao/gestao-suas/pkg/auth"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// Handler handles user administration inside a tenant.
type Handler struct {
	logger *slog.Logger
	users  *auth.UserService
}

// NewHandler creates a new users handler.
func NewHandler(logger *slog.Logger, users *auth.UserService) *Handler {
	return &Handler{logger: logger, users: users}
}

// UserView is a user as returned to clients. Credentials never leave the server.
type UserView struct {
	ID          int64       `json:"id"`
	TenantID    int64       `json:"tenantId"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	Role        domain.Role `json:"role"`
	UnitID      *int64      `json:"unit,omitempty"`
	Active      bool        `json:"active"`
	TOTP        bool        `json:"totp"`
	LastLoginAt *time.Time  `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

func toView(u *domain.User) UserView {
	return UserView{
		ID:          u.ID,
		TenantID:    u.TenantID,
		Username:    u.Username,
		Email:       u.Email,
		Name:        u.Name,
		Role:        u.Role,
		UnitID:      u.UnitID,
		Active:      u.Active,
		TOTP:        u.HasTOTP(),
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// CreateRequest represents a new user.
type CreateRequest struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
	UnitID   *int64      `json:"unit,omitempty"`
}

// UpdateRequest represents a partial user update. Absent fields are unchanged.
type UpdateRequest struct {
	Email     *string      `json:"email,omitempty"`
	Name      *string      `json:"name,omitempty"`
	Role      *domain.Role `json:"role,omitempty"`
	UnitID    *int64       `json:"unit,omitempty"`
	ClearUnit bool         `json:"clearUnit,omitempty"`
	Active    *bool        `json:"active,omitempty"`
}

// ResetPasswordRequest represents an administrative password reset.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// List returns the users of the caller's tenant. When the caller's grant is
// restricted to their unit, only users of that unit are listed.
// GET /v1/users
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteError(w, r, h.logger, domain.ErrUnauthenticated)
		return
	}

	list, err := h.users.List(r.Context(), p)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	grant, _ := middleware.GetGrant(r.Context())
	views := make([]UserView, 0, len(list))
	for _, u := range list {
		if grant.UnitRestricted && !p.IsAdministrator() && !p.SharesUnit(u.UnitID) {
			continue
		}
		views = append(views, toView(u))
	}

	httputil.JSON(w, http.StatusOK, map[string]any{"success": true, "users": views})
}

// Create adds a user to the caller's tenant.
// POST /v1/users
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteError(w, r, h.logger, domain.ErrUnauthenticated)
		return
	}

	var req CreateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Create(r.Context(), p, auth.NewUserInput{
		Username: req.Username,
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
		UnitID:   req.UnitID,
	})
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]any{"success": true, "user": toView(user)})
}

// Update changes a user of the caller's tenant.
// PATCH /v1/users/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	p, grant, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Update(r.Context(), p, grant, id, auth.UserPatch{
		Email:     req.Email,
		Name:      req.Name,
		Role:      req.Role,
		UnitID:    req.UnitID,
		ClearUnit: req.ClearUnit,
		Active:    req.Active,
	})
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{"success": true, "user": toView(user)})
}

// ResetPassword sets a new password for a user of the caller's tenant.
// POST /v1/users/{id}/reset-password
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	p, grant, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req ResetPasswordRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "invalid_input", "password is required")
		return
	}

	if err := h.users.ResetPassword(r.Context(), p, grant, id, req.Password); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Deactivate soft-deletes a user of the caller's tenant.
// DELETE /v1/users/{id}
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	p, grant, id, ok := h.target(w, r)
	if !ok {
		return
	}

	if err := h.users.Deactivate(r.Context(), p, grant, id); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// target reads the caller, the grant the permission middleware attached and
// the {id} path parameter.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (*domain.Principal, domain.Grant, int64, bool) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteError(w, r, h.logger, domain.ErrUnauthenticated)
		return nil, domain.Grant{}, 0, false
	}
	grant, _ := middleware.GetGrant(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteError(w, r, h.logger, domain.ErrUserNotFound)
		return nil, domain.Grant{}, 0, false
	}
	return p, grant, id, true
}
