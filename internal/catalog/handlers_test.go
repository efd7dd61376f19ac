package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/mercadoforte/backend-caixa/internal/catalog"
	"github.com/mercadoforte/backend-caixa/internal/tenant"
)

type productsResponse struct {
	Data       []catalog.Product `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalItems int `json:"total_items"`
	} `json:"pagination"`
}

type productResponse struct {
	Data catalog.Product `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newRouter(t *testing.T) (http.Handler, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	seedGrocery(store)
	h := &catalog.Handler{Svc: newService(t, store), DefaultPerPage: 2, MaxPerPage: 10}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(tenant.With(req.Context(), "loja-1")))
		})
	})
	r.Route("/api/v1/products", h.Routes)
	r.Get("/api/v1/stock/balance", h.StockBalance)
	return r, store
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCatalogHandlers(t *testing.T) {
	router, store := newRouter(t)

	t.Run("list paginates", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/v1/products", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "3", rec.Header().Get("X-Total-Count"))
		var resp productsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 2)
		require.Equal(t, 2, resp.Pagination.PerPage)
		require.Equal(t, 3, resp.Pagination.TotalItems)
	})

	t.Run("lookup by code", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/v1/products/lookup/789300", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp productResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "Arroz Integral", resp.Data.Name)

		rec = do(t, router, http.MethodGet, "/api/v1/products/lookup/nope", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("search without results is empty data", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/v1/products/search?term=xyz", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"data":[]}`, rec.Body.String())
	})

	t.Run("create and conflict", func(t *testing.T) {
		body := `{"code":"555","name":"Café 500g","price":"17.5","costPrice":"12","marginPercent":"45","stock":"6"}`
		rec := do(t, router, http.MethodPost, "/api/v1/products", body)
		require.Equal(t, http.StatusCreated, rec.Code)
		var resp productResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "Café 500g", resp.Data.Name)
		require.Len(t, store.products["loja-1"], 4)

		rec = do(t, router, http.MethodPost, "/api/v1/products", body)
		require.Equal(t, http.StatusConflict, rec.Code)

		rec = do(t, router, http.MethodPost, "/api/v1/products", `{"name":"x"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var errResp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
		require.Equal(t, "VALIDATION_ERROR", errResp.Error.Code)
	})

	t.Run("suggested price", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/v1/products/suggested-price?cost=10,00&margin=30", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"data":{"price":"13"}}`, rec.Body.String())

		rec = do(t, router, http.MethodGet, "/api/v1/products/suggested-price?cost=-1&margin=30", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		p, err := store.GetByCode(context.Background(), "loja-1", "789300")
		require.NoError(t, err)
		rec := do(t, router, http.MethodDelete, "/api/v1/products/"+p.ID, "")
		require.Equal(t, http.StatusNoContent, rec.Code)
		rec = do(t, router, http.MethodGet, "/api/v1/products/"+p.ID, "")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("stock balance", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/v1/stock/balance", "")
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestCatalogHandlersRequireBusiness(t *testing.T) {
	store := newFakeStore()
	h := &catalog.Handler{Svc: newService(t, store)}
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
