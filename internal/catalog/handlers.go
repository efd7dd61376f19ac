package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/tenant"
)

// Handler exposes catalog endpoints.
type Handler struct {
	Svc            *Service
	DefaultPerPage int
	MaxPerPage     int
}

// Routes mounts the product endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/search", h.Search)
	r.Get("/suggested-price", h.SuggestedPrice)
	r.Get("/lookup/{code}", h.Lookup)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// List handles GET /api/v1/products.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	page, perPage := common.ParsePagination(r, h.DefaultPerPage, h.MaxPerPage)
	result, err := h.Svc.List(r.Context(), scope, r.URL.Query().Get("q"), page, perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(result.Total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": common.Pagination{Page: result.Page, PerPage: result.PerPage, TotalItems: int(result.Total)},
	})
}

// Search handles GET /api/v1/products/search?term=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 0)
	items, err := h.Svc.Search(r.Context(), scope, r.URL.Query().Get("term"), limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// Lookup handles GET /api/v1/products/lookup/{code}.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.Svc.LookupByCode(r.Context(), scope, chi.URLParam(r, "code"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, p)
}

// Get handles GET /api/v1/products/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.Svc.Get(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, p)
}

// Create handles POST /api/v1/products.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in ProductInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.Svc.Create(r.Context(), scope, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, p)
}

// Update handles PUT /api/v1/products/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in ProductInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.Svc.Update(r.Context(), scope, chi.URLParam(r, "id"), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, p)
}

// Delete handles DELETE /api/v1/products/{id}.
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

// SuggestedPrice handles GET /api/v1/products/suggested-price?cost=&margin=.
func (h *Handler) SuggestedPrice(w http.ResponseWriter, r *http.Request) {
	cost, err := common.ParseDecimal(r.URL.Query().Get("cost"))
	if err != nil || cost.IsNegative() {
		common.WriteError(w, common.Validation("cost must be a non-negative number", map[string]any{"field": "cost"}))
		return
	}
	margin, err := common.ParseDecimal(r.URL.Query().Get("margin"))
	if err != nil || margin.IsNegative() {
		common.WriteError(w, common.Validation("margin must be a non-negative number", map[string]any{"field": "margin"}))
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"price": SuggestedPrice(cost, margin)})
}

// StockBalance handles GET /api/v1/stock/balance.
func (h *Handler) StockBalance(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	balance, err := h.Svc.StockBalance(r.Context(), scope)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, balance)
}
