package ledger_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/events"
	"github.com/mercadoforte/backend-caixa/internal/ledger"
	"github.com/mercadoforte/backend-caixa/internal/period"
	"github.com/mercadoforte/backend-caixa/internal/tenant"
)

var scope = common.Scope{BusinessID: "loja-1", Operator: "Ana"}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeStore struct {
	mu       sync.Mutex
	clients  map[string]ledger.Client
	payments []ledger.Payment
	now      time.Time
}

func newFakeStore(now time.Time) *fakeStore {
	return &fakeStore{clients: map[string]ledger.Client{}, now: now}
}

func (f *fakeStore) add(name string, debt string) ledger.Client {
	c := ledger.Client{ID: uuid.NewString(), Name: name, Debt: d(debt), TotalSpent: d(debt)}
	f.clients[c.ID] = c
	return c
}

func (f *fakeStore) sorted(keep func(ledger.Client) bool) []ledger.Client {
	out := make([]ledger.Client, 0)
	for _, c := range f.clients {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

func (f *fakeStore) List(_ context.Context, _ string, q string) ([]ledger.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(c ledger.Client) bool { return strings.Contains(strings.ToLower(c.Name), strings.ToLower(q)) }), nil
}

func (f *fakeStore) Suggest(_ context.Context, _ string, prefix string, limit int) ([]ledger.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sorted(func(c ledger.Client) bool { return strings.HasPrefix(strings.ToLower(c.Name), strings.ToLower(prefix)) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, _ string, id string) (ledger.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[id]
	if !ok {
		return ledger.Client{}, ledger.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) Insert(_ context.Context, _ string, in ledger.ClientInput) (ledger.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.clients {
		if c.Name == in.Name {
			return ledger.Client{}, ledger.ErrDuplicateName
		}
	}
	c := ledger.Client{ID: uuid.NewString(), Name: in.Name, Phone: in.Phone, CreatedAt: f.now}
	f.clients[c.ID] = c
	return c, nil
}

func (f *fakeStore) Update(_ context.Context, _ string, id string, in ledger.ClientInput) (ledger.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[id]
	if !ok {
		return ledger.Client{}, ledger.ErrNotFound
	}
	c.Name, c.Phone = in.Name, in.Phone
	f.clients[id] = c
	return c, nil
}

func (f *fakeStore) Delete(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[id]
	if !ok {
		return ledger.ErrNotFound
	}
	if c.Debt.IsPositive() {
		return ledger.ErrHasDebt
	}
	delete(f.clients, id)
	return nil
}

func (f *fakeStore) RecordPayment(_ context.Context, _ string, clientID, operator string, in ledger.PaymentInput) (ledger.Payment, ledger.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[clientID]
	if !ok {
		return ledger.Payment{}, ledger.Client{}, ledger.ErrNotFound
	}
	if in.Amount.GreaterThan(c.Debt) {
		return ledger.Payment{}, ledger.Client{}, ledger.ErrOverpayment
	}
	c.Debt = c.Debt.Sub(in.Amount)
	paidAt := f.now
	c.LastPaymentAt = &paidAt
	f.clients[clientID] = c
	p := ledger.Payment{ID: uuid.NewString(), ClientID: c.ID, ClientName: c.Name, Amount: in.Amount, Method: in.Method, Note: in.Note, Operator: operator, PaidAt: paidAt}
	f.payments = append(f.payments, p)
	return p, c, nil
}

func (f *fakeStore) ListPayments(_ context.Context, _ string, r period.Range, clientID string) ([]ledger.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ledger.Payment, 0)
	for _, p := range f.payments {
		if r.Contains(p.PaidAt) && (clientID == "" || p.ClientID == clientID) {
			out = append(out, p)
		}
	}
	return out, nil
}

type eventLog struct{ topics []string }

func (e *eventLog) InsertDomainEvent(_ context.Context, ev events.Event) (events.Event, error) {
	e.topics = append(e.topics, ev.Topic)
	ev.ID = uuid.NewString()
	return ev, nil
}

func newService(store ledger.Store, now time.Time) *ledger.Service {
	return &ledger.Service{Store: store, Calendar: period.CalendarDay(time.UTC), Now: func() time.Time { return now }}
}

func TestListTotalsDebt(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(now)
	store.add("Maria", "30.50")
	store.add("joão", "10")
	store.add("Ana", "0")
	svc := newService(store, now)

	list, err := svc.List(context.Background(), scope, "")
	require.NoError(t, err)
	require.Len(t, list.Items, 3)
	require.Equal(t, "Ana", list.Items[0].Name)
	require.Equal(t, "40.5", list.TotalDebt.String())

	sugg, err := svc.Suggest(context.Background(), scope, "ma")
	require.NoError(t, err)
	require.Len(t, sugg, 1)

	empty, err := svc.Suggest(context.Background(), scope, "  ")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestCreateUpdateDelete(t *testing.T) {
	now := time.Now()
	store := newFakeStore(now)
	debtor := store.add("Devedor", "5")
	svc := newService(store, now)
	ctx := context.Background()

	c, err := svc.Create(ctx, scope, ledger.ClientInput{Name: "  Carla ", Phone: " 1199 "})
	require.NoError(t, err)
	require.Equal(t, "Carla", c.Name)
	require.Equal(t, "1199", c.Phone)

	_, err = svc.Create(ctx, scope, ledger.ClientInput{Name: "Carla"})
	require.True(t, common.HasCode(err, common.CodeConflict))

	_, err = svc.Create(ctx, scope, ledger.ClientInput{Name: "   "})
	require.True(t, common.HasCode(err, common.CodeValidation))

	c, err = svc.Update(ctx, scope, c.ID, ledger.ClientInput{Name: "Carla Souza"})
	require.NoError(t, err)
	require.Equal(t, "Carla Souza", c.Name)

	err = svc.Delete(ctx, scope, debtor.ID)
	require.True(t, common.HasCode(err, common.CodeValidation))
	require.ErrorIs(t, err, ledger.ErrHasDebt)

	require.NoError(t, svc.Delete(ctx, scope, c.ID))
	_, err = svc.Get(ctx, scope, c.ID)
	require.True(t, common.HasCode(err, common.CodeNotFound))
	_, err = svc.Get(ctx, scope, "abc")
	require.True(t, common.HasCode(err, common.CodeNotFound))
}

func TestRecordPayment(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(now)
	maria := store.add("Maria", "30.50")
	svc := newService(store, now)
	log := &eventLog{}
	svc.Events = &events.Bus{Store: log}
	ctx := context.Background()

	p, c, err := svc.RecordPayment(ctx, scope, maria.ID, ledger.PaymentInput{Amount: d("10.505")})
	require.NoError(t, err)
	require.Equal(t, "10.51", p.Amount.String())
	require.Equal(t, "cash", p.Method)
	require.Equal(t, "Ana", p.Operator)
	require.Equal(t, "19.99", c.Debt.String())
	require.NotNil(t, c.LastPaymentAt)
	require.Equal(t, []string{events.TopicPaymentRecorded}, log.topics)

	_, _, err = svc.RecordPayment(ctx, scope, maria.ID, ledger.PaymentInput{Amount: d("20")})
	require.ErrorIs(t, err, ledger.ErrOverpayment)

	_, _, err = svc.RecordPayment(ctx, scope, maria.ID, ledger.PaymentInput{Amount: d("0")})
	require.True(t, common.HasCode(err, common.CodeValidation))

	_, _, err = svc.RecordPayment(ctx, scope, maria.ID, ledger.PaymentInput{Amount: d("1"), Method: "boleto"})
	require.True(t, common.HasCode(err, common.CodeValidation))

	today, err := svc.Calendar.Resolve(period.Today, now)
	require.NoError(t, err)
	list, err := svc.ListPayments(ctx, scope, today, "")
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, "10.51", list.Total.String())

	yesterday, err := svc.Calendar.Resolve(period.Yesterday, now)
	require.NoError(t, err)
	list, err = svc.ListPayments(ctx, scope, yesterday, "")
	require.NoError(t, err)
	require.Empty(t, list.Items)
}

func TestPaymentHandlers(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(now)
	maria := store.add("Maria", "30")
	h := &ledger.Handler{Svc: newService(store, now)}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(tenant.With(req.Context(), "loja-1")))
		})
	})
	r.Route("/api/v1/clients", h.Routes)
	r.Get("/api/v1/payments", h.Payments)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/clients/"+maria.ID+"/payments", strings.NewReader(`{"amount":"12.5","method":"pix"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments?date=2024-06-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data struct {
			Items []ledger.Payment `json:"items"`
			Total decimal.Decimal  `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Items, 1)
	require.Equal(t, "12.5", resp.Data.Total.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/clients/"+maria.ID+"/payments?period=yesterday", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments?period=sometime", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
