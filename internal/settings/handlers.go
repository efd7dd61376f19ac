package settings

import (
	"net/http"

	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/tenant"
)

// Handler exposes the settings endpoints.
type Handler struct {
	Svc *Service
}

// Get handles GET /api/v1/settings.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.Get(r.Context(), scope.BusinessID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, out)
}

// Update handles PUT /api/v1/settings.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in Settings
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.Update(r.Context(), scope.BusinessID, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, out)
}
