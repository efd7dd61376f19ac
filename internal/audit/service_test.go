package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/obs"
	"github.com/mercadoforte/backend-caixa/internal/tenant"
)

type stubStore struct {
	entries []Entry
	listErr error
	limit   int
	offset  int
}

func (s *stubStore) Insert(_ context.Context, e Entry) error {
	s.entries = append(s.entries, e)
	return nil
}

func (s *stubStore) List(_ context.Context, businessID string, limit, offset int) ([]Entry, error) {
	s.limit, s.offset = limit, offset
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []Entry
	for _, e := range s.entries {
		if e.BusinessID == businessID {
			out = append(out, e)
		}
	}
	return out, nil
}

func scopedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := tenant.With(req.Context(), "loja-1")
	ctx = common.WithOperator(ctx, common.Operator{ID: "op-1", Name: "Ana"})
	return req.WithContext(ctx)
}

func TestServiceRecord(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true}

	req := scopedRequest(http.MethodDelete, "https://api.test/api/v1/sales/abc?reason=duplicada")
	req.Header.Set("X-Request-ID", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/sales/{id}"))

	require.NoError(t, svc.Record(req.Context(), "", "", "abc", req, http.StatusNoContent, nil))
	require.Len(t, store.entries, 1)
	got := store.entries[0]
	require.Equal(t, "loja-1", got.BusinessID)
	require.Equal(t, "op-1", got.OperatorID)
	require.Equal(t, "Ana", got.Operator)
	require.Equal(t, "DELETE /api/v1/sales/{id}", got.Action)
	require.Equal(t, "sales.{id}", got.ResourceType)
	require.Equal(t, "abc", got.ResourceID)
	require.Equal(t, "10.0.0.2", got.IP)
	require.Equal(t, "req-123", got.RequestID)
	require.Equal(t, http.StatusNoContent, got.Status)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(got.Metadata, &meta))
	require.Equal(t, "reason=duplicada", meta["query"])
}

func TestServiceRecordSkips(t *testing.T) {
	store := &stubStore{}
	require.NoError(t, Service{Store: store}.Record(context.Background(), "", "", "", scopedRequest(http.MethodDelete, "/"), 0, nil))

	anonymous := httptest.NewRequest(http.MethodDelete, "/", nil)
	require.NoError(t, Service{Store: store, Enabled: true}.Record(context.Background(), "", "", "", anonymous, 0, nil))
	require.Empty(t, store.entries)
}

func TestMiddlewareRecordsAfterHandler(t *testing.T) {
	store := &stubStore{}
	rec := HTTPRecorder{Service: &Service{Store: store, Enabled: true}}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := tenant.With(req.Context(), "loja-1")
			next.ServeHTTP(w, req.WithContext(common.WithOperator(ctx, common.Operator{ID: "op-1"})))
		})
	})
	r.With(rec.Middleware(HTTPConfig{Action: "client.delete", ResourceType: "client", ResourceIDParam: "id"})).
		Delete("/clients/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/clients/c-9", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Len(t, store.entries, 1)
	require.Equal(t, "client.delete", store.entries[0].Action)
	require.Equal(t, "c-9", store.entries[0].ResourceID)
	require.Equal(t, http.StatusNoContent, store.entries[0].Status)
}

func TestHandlerList(t *testing.T) {
	store := &stubStore{entries: []Entry{{BusinessID: "loja-1", Action: "sale.delete"}, {BusinessID: "loja-2", Action: "x"}}}
	h := Handler{Svc: &Service{Store: store, Enabled: true}}

	rr := httptest.NewRecorder()
	h.List(rr, scopedRequest(http.MethodGet, "/audit?limit=25&offset=10"))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 25, store.limit)
	require.Equal(t, 10, store.offset)

	var body struct {
		Data []Entry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "sale.delete", body.Data[0].Action)

	store.listErr = errors.New("db down")
	rr = httptest.NewRecorder()
	h.List(rr, scopedRequest(http.MethodGet, "/audit"))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestDestructiveRecordsOnlySuccessfulDeletes(t *testing.T) {
	store := &stubStore{}
	rec := HTTPRecorder{Service: &Service{Store: store, Enabled: true}}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(tenant.With(req.Context(), "loja-1")))
		})
	})
	r.Use(rec.Destructive())
	r.Route("/api/v1/expenses", func(e chi.Router) {
		e.Get("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
		e.Delete("/{id}", func(w http.ResponseWriter, req *http.Request) {
			if chi.URLParam(req, "id") == "missing" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	for _, target := range []string{"/api/v1/expenses/e-1", "/api/v1/expenses/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, target, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/expenses/", nil))

	require.Len(t, store.entries, 1)
	require.Equal(t, "e-1", store.entries[0].ResourceID)
	require.Equal(t, "DELETE /api/v1/expenses/{id}", store.entries[0].Action)
	require.Equal(t, "expenses.{id}", store.entries[0].ResourceType)
}
