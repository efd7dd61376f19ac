package sale

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mercadoforte/backend-caixa/internal/cart"
	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/tenant"
	"github.com/mercadoforte/backend-caixa/internal/tender"
)

// Handler exposes the till endpoints for the caller's sale session.
type Handler struct {
	Svc *Service
}

type scanRequest struct {
	Term string `json:"term" validate:"required"`
}

type itemRequest struct {
	ProductID string           `json:"productId"`
	Term      string           `json:"term" validate:"required_without=ProductID"`
	Quantity  *decimal.Decimal `json:"quantity"`
}

type clientRequest struct {
	Name  string `json:"name" validate:"max=120"`
	Phone string `json:"phone" validate:"max=40"`
}

type methodRequest struct {
	Method string `json:"method" validate:"required"`
}

// Routes mounts the session endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Open)
	r.Get("/", h.Get)
	r.Post("/scan", h.Scan)
	r.Post("/items", h.AddItem)
	r.Delete("/items/{index}", h.RemoveItem)
	r.Put("/adjustments", h.SetAdjustments)
	r.Put("/client", h.SetClient)
	r.Put("/method", h.SelectMethod)
	r.Put("/amounts", h.SetAmounts)
	r.Post("/advance", h.Advance)
	r.Post("/back", h.Back)
	r.Post("/cancel", h.Cancel)
	r.Post("/commit", h.Commit)
}

// serve resolves the scope, runs fn and writes its view.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, status int, fn func(context.Context, common.Scope) (View, error)) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := fn(r.Context(), scope)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, status, view)
}

// Open handles POST /api/v1/sales/session.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, h.Svc.Open)
}

// Get handles GET /api/v1/sales/session.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, h.Svc.Get)
}

// Scan handles POST /api/v1/sales/session/scan.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	h.serve(w, r, http.StatusOK, func(ctx context.Context, scope common.Scope) (View, error) {
		return h.Svc.Scan(ctx, scope, req.Term)
	})
}

// AddItem handles POST /api/v1/sales/session/items. A productId adds that
// product; otherwise the best match for term is added.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	// An omitted quantity is one unit for a picked product and the term's own
	// prefix for a typed term; an explicit one must be positive.
	var qty decimal.Decimal
	if req.Quantity != nil {
		if err := cart.CheckQuantity(*req.Quantity); err != nil {
			common.WriteError(w, err)
			return
		}
		qty = *req.Quantity
	}
	h.serve(w, r, http.StatusOK, func(ctx context.Context, scope common.Scope) (View, error) {
		if req.ProductID != "" {
			if req.Quantity == nil {
				qty = decimal.NewFromInt(1)
			}
			return h.Svc.AddProduct(ctx, scope, req.ProductID, qty)
		}
		return h.Svc.Confirm(ctx, scope, req.Term, qty)
	})
}

// RemoveItem handles DELETE /api/v1/sales/session/items/{index}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		common.WriteError(w, common.Validation("index must be a number", nil))
		return
	}
	h.serve(w, r, http.StatusOK, func(ctx context.Context, scope common.Scope) (View, error) {
		return h.Svc.RemoveItem(ctx, scope, index)
	})
}

// SetAdjustments handles PUT /api/v1/sales/session/adjustments.
func (h *Handler) SetAdjustments(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentsInput
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	h.serve(w, r, http.StatusOK, func(ctx context.Context, scope common.Scope) (View, error) {
		return h.Svc.SetAdjustments(ctx, scope, req)
	})
}

// SetClient handles PUT /api/v1/sales/session/client.
func (h *Handler) SetClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	h.serve(w, r, http.StatusOK, func(ctx context.Context, scope common.Scope) (View, error) {
		return h.Svc.SetClient(ctx, scope, req.Name, req.Phone)
	})
}

// SelectMethod handles PUT /api/v1/sales/session/method.
func (h *Handler) SelectMethod(w http.ResponseWriter, r *http.Request) {
	var req methodRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	h.serve(w, r, http.StatusOK, func(ctx context.Context, scope common.Scope) (View, error) {
		return h.Svc.SelectMethod(ctx, scope, req.Method)
	})
}

// SetAmounts handles PUT /api/v1/sales/session/amounts.
func (h *Handler) SetAmounts(w http.ResponseWriter, r *http.Request) {
	var req tender.Inputs
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	h.serve(w, r, http.StatusOK, func(ctx context.Context, scope common.Scope) (View, error) {
		return h.Svc.SetAmounts(ctx, scope, req)
	})
}

// Advance handles POST /api/v1/sales/session/advance.
func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, h.Svc.Advance)
}

// Back handles POST /api/v1/sales/session/back.
func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, h.Svc.Back)
}

// Cancel handles POST /api/v1/sales/session/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, h.Svc.Cancel)
}

// Commit handles POST /api/v1/sales/session/commit. The body is optional.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	var req CommitInput
	if r.ContentLength > 0 {
		if err := common.DecodeJSON(r, &req); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	h.serve(w, r, http.StatusCreated, func(ctx context.Context, scope common.Scope) (View, error) {
		return h.Svc.Commit(ctx, scope, req)
	})
}
