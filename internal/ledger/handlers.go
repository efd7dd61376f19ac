package ledger

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/tenant"
)

// Handler exposes client ledger endpoints.
type Handler struct {
	Svc *Service
}

// Routes mounts the client endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/suggest", h.Suggest)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/payments", h.RecordPayment)
	r.Get("/{id}/payments", h.ClientPayments)
}

// List handles GET /api/v1/clients.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	list, err := h.Svc.List(r.Context(), scope, r.URL.Query().Get("q"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, list)
}

// Suggest handles GET /api/v1/clients/suggest?prefix=.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	items, err := h.Svc.Suggest(r.Context(), scope, r.URL.Query().Get("prefix"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// Get handles GET /api/v1/clients/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	c, err := h.Svc.Get(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, c)
}

// Create handles POST /api/v1/clients.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in ClientInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	c, err := h.Svc.Create(r.Context(), scope, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, c)
}

// Update handles PUT /api/v1/clients/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in ClientInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	c, err := h.Svc.Update(r.Context(), scope, chi.URLParam(r, "id"), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, c)
}

// Delete handles DELETE /api/v1/clients/{id}.
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

// RecordPayment handles POST /api/v1/clients/{id}/payments.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in PaymentInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	p, c, err := h.Svc.RecordPayment(r.Context(), scope, chi.URLParam(r, "id"), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, map[string]any{"payment": p, "client": c})
}

// ClientPayments handles GET /api/v1/clients/{id}/payments.
func (h *Handler) ClientPayments(w http.ResponseWriter, r *http.Request) {
	h.listPayments(w, r, chi.URLParam(r, "id"))
}

// Payments handles GET /api/v1/payments.
func (h *Handler) Payments(w http.ResponseWriter, r *http.Request) {
	h.listPayments(w, r, r.URL.Query().Get("clientId"))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request, clientID string) {
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
	list, err := h.Svc.ListPayments(r.Context(), scope, window, clientID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, list)
}
