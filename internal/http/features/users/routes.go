package users

import (
	"github.com/go-chi/chi/v5"

	"github.com/cras-gestao/gestao-suas/internal/http/middleware"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// Module is the permission matrix module guarding user administration.
const Module = "usuarios"

// RegisterRoutes registers user administration routes. r must already carry
// the tenant and auth middleware.
func (h *Handler) RegisterRoutes(r chi.Router, perms middleware.GrantEvaluator) {
	can := func(action domain.Action) chi.Router {
		return r.With(middleware.RequirePermission(perms, Module, action, h.logger))
	}

	can(domain.ActionView).Get("/v1/users", h.List)
	can(domain.ActionCreate).Post("/v1/users", h.Create)
	can(domain.ActionEdit).Patch("/v1/users/{id}", h.Update)
	can(domain.ActionEdit).Post("/v1/users/{id}/reset-password", h.ResetPassword)
	can(domain.ActionDelete).Delete("/v1/users/{id}", h.Deactivate)
}
