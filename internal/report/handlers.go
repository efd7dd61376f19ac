package report

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/tenant"
)

// Handler exposes the sales history endpoints.
type Handler struct {
	Svc *Service
}

// SaleRoutes mounts GET and DELETE /{id} on r.
func (h *Handler) SaleRoutes(r chi.Router) {
	r.Get("/{id}", h.GetSale)
	r.Delete("/{id}", h.DeleteSale)
}

// Sales handles GET /api/v1/reports/sales?period=today|yesterday|last7|last30,
// ?date=YYYY-MM-DD or ?from=&to=.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	window, err := h.Svc.Calendar.FromQuery(r.URL.Query(), h.Svc.now())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.Sales(r.Context(), scope, window)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, out)
}

// GetSale handles GET /api/v1/sales/{id}.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	sale, err := h.Svc.GetSale(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, sale)
}

// DeleteSale handles DELETE /api/v1/sales/{id}.
func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Svc.DeleteSale(r.Context(), scope, chi.URLParam(r, "id")); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
