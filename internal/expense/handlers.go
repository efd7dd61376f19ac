package expense

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/tenant"
)

// Handler exposes expense endpoints.
type Handler struct {
	Svc *Service
	Now func() time.Time
}

// Routes mounts the expense endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Delete("/{id}", h.Delete)
}

// List handles GET /api/v1/expenses?date= or ?month=&year=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	window, err := h.Svc.Calendar.FromQuery(r.URL.Query(), now)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	list, err := h.Svc.List(r.Context(), scope, window)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, list)
}

// Create handles POST /api/v1/expenses.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	e, err := h.Svc.Create(r.Context(), scope, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, e)
}

// Delete handles DELETE /api/v1/expenses/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Svc.Delete(r.Context(), scope, chi.URLParam(r, "id")); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
