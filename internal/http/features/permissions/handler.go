package permissions

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cras-gestao/gestao-suas/internal/http/middleware"
	"github.com/cras-gestao/gestao-suas/internal/httputil"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// Handler exposes the caller's own grants so clients can hide what they cannot do.
type Handler struct {
	logger *slog.Logger
	perms  middleware.GrantEvaluator
}

// NewHandler creates a new permissions handler.
func NewHandler(logger *slog.Logger, perms middleware.GrantEvaluator) *Handler {
	return &Handler{logger: logger, perms: perms}
}

// Get returns the caller's grant on a module.
// GET /v1/permissions/{module}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteError(w, r, h.logger, domain.ErrUnauthenticated)
		return
	}

	module := chi.URLParam(r, "module")
	if !domain.ValidModuleCode(module) {
		httputil.Error(w, http.StatusBadRequest, "invalid_module", "invalid module code")
		return
	}

	grant, err := h.perms.Grant(r.Context(), p, module)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{"success": true, "permission": grant})
}
