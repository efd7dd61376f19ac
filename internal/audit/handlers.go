package audit

import (
	"net/http"

	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/tenant"
)

// Handler exposes the audit trail of the current business.
type Handler struct {
	Svc *Service
}

// List returns a page of audit entries, newest first.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.Scope(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := common.AtoiDefault(r.URL.Query().Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}
	rows, err := h.Svc.List(r.Context(), scope.BusinessID, limit, offset)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, rows)
}
