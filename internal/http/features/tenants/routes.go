package tenants

import "github.com/go-chi/chi/v5"

// RegisterSignupRoutes registers the signup route. r must only accept the
// marketing host.
func (h *Handler) RegisterSignupRoutes(r chi.Router) {
	r.Post("/v1/signup", h.Signup)
}

// RegisterSystemRoutes registers platform tenant administration. r must
// already require a super administrator.
func (h *Handler) RegisterSystemRoutes(r chi.Router) {
	r.Get("/v1/system/tenants", h.List)
	r.Post("/v1/system/tenants", h.Create)
	r.Patch("/v1/system/tenants/{id}", h.Update)
}
