package expense_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/expense"
	"github.com/mercadoforte/backend-caixa/internal/period"
	"github.com/mercadoforte/backend-caixa/internal/tenant"
)

type memStore struct {
	items []expense.Expense
}

func (m *memStore) Insert(_ context.Context, _, operator, title string, amount decimal.Decimal, spentOn time.Time) (expense.Expense, error) {
	e := expense.Expense{ID: uuid.NewString(), Title: title, Amount: amount, SpentOn: spentOn, Operator: operator, CreatedAt: time.Now()}
	m.items = append(m.items, e)
	return e, nil
}

func (m *memStore) Delete(_ context.Context, _, id string) error {
	for i, e := range m.items {
		if e.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return expense.ErrNotFound
}

func (m *memStore) List(_ context.Context, _ string, from, to time.Time) ([]expense.Expense, error) {
	out := make([]expense.Expense, 0)
	for _, e := range m.items {
		if !e.SpentOn.Before(from) && e.SpentOn.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

var scope = common.Scope{BusinessID: "loja-1", Operator: "Ana"}

func TestCreateAndListByDayAndMonth(t *testing.T) {
	store := &memStore{}
	svc := &expense.Service{Store: store, Calendar: period.CalendarDay(time.UTC)}
	ctx := context.Background()

	for _, in := range []expense.Input{
		{Title: "Nota fornecedor", Amount: decimal.RequireFromString("150.00"), SpentOn: "2024-04-02"},
		{Title: "Energia", Amount: decimal.RequireFromString("89.9"), SpentOn: "2024-04-15"},
		{Title: "Aluguel", Amount: decimal.RequireFromString("1200"), SpentOn: "2024-05-01"},
	} {
		_, err := svc.Create(ctx, scope, in)
		require.NoError(t, err)
	}

	day, err := svc.Calendar.Day("2024-04-02")
	require.NoError(t, err)
	list, err := svc.List(ctx, scope, day)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, "150", list.Total.String())

	month, err := svc.Calendar.Month(4, 2024)
	require.NoError(t, err)
	list, err = svc.List(ctx, scope, month)
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	require.Equal(t, "239.9", list.Total.String())
}

func TestCreateValidation(t *testing.T) {
	svc := &expense.Service{Store: &memStore{}, Calendar: period.CalendarDay(time.UTC)}
	ctx := context.Background()

	_, err := svc.Create(ctx, scope, expense.Input{Title: "x", Amount: decimal.Zero, SpentOn: "2024-04-02"})
	require.True(t, common.HasCode(err, common.CodeValidation))
	_, err = svc.Create(ctx, scope, expense.Input{Title: "x", Amount: decimal.NewFromInt(1), SpentOn: "02/04/2024"})
	require.True(t, common.HasCode(err, common.CodeValidation))
	_, err = svc.Create(ctx, scope, expense.Input{Title: " ", Amount: decimal.NewFromInt(1), SpentOn: "2024-04-02"})
	require.True(t, common.HasCode(err, common.CodeValidation))
}

func TestExpenseHandlers(t *testing.T) {
	store := &memStore{}
	h := &expense.Handler{
		Svc: &expense.Service{Store: store, Calendar: period.CalendarDay(time.UTC)},
		Now: func() time.Time { return time.Date(2024, 4, 20, 10, 0, 0, 0, time.UTC) },
	}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(tenant.With(req.Context(), "loja-1")))
		})
	})
	r.Route("/api/v1/expenses", h.Routes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/expenses", strings.NewReader(`{"title":"Gás","amount":"110","spentOn":"2024-04-20"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/expenses?month=4", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Gás")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/expenses/"+store.items[0].ID, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/expenses/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
