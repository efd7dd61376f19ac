package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/events"
	"github.com/mercadoforte/backend-caixa/internal/period"
)

const suggestLimit = 10

// Service manages clients and their debt payments.
type Service struct {
	Store    Store
	Calendar period.Calendar
	Events   *events.Bus
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// List returns the clients sorted by name with the total outstanding debt.
func (s *Service) List(ctx context.Context, scope common.Scope, q string) (ClientList, error) {
	if err := scope.Require(); err != nil {
		return ClientList{}, err
	}
	items, err := s.Store.List(ctx, scope.BusinessID, strings.TrimSpace(q))
	if err != nil {
		return ClientList{}, common.Persistence("list clients", err)
	}
	total := decimal.Zero
	for _, c := range items {
		total = total.Add(c.Debt)
	}
	return ClientList{Items: items, TotalDebt: total}, nil
}

// Suggest returns clients whose name starts with prefix, for the till's
// client field.
func (s *Service) Suggest(ctx context.Context, scope common.Scope, prefix string) ([]Client, error) {
	if err := scope.Require(); err != nil {
		return nil, err
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []Client{}, nil
	}
	items, err := s.Store.Suggest(ctx, scope.BusinessID, prefix, suggestLimit)
	if err != nil {
		return nil, common.Persistence("suggest clients", err)
	}
	return items, nil
}

// Get returns one client.
func (s *Service) Get(ctx context.Context, scope common.Scope, id string) (Client, error) {
	if err := s.checkID(scope, id); err != nil {
		return Client{}, err
	}
	c, err := s.Store.Get(ctx, scope.BusinessID, id)
	if err != nil {
		return Client{}, mapStoreError("get client", err)
	}
	return c, nil
}

// Create registers a client with zero debt. Names are unique per business.
func (s *Service) Create(ctx context.Context, scope common.Scope, in ClientInput) (Client, error) {
	if err := scope.Require(); err != nil {
		return Client{}, err
	}
	in = in.normalize()
	if err := common.ValidateStruct(in); err != nil {
		return Client{}, err
	}
	c, err := s.Store.Insert(ctx, scope.BusinessID, in)
	if err != nil {
		return Client{}, mapStoreError("create client", err)
	}
	return c, nil
}

// Update renames a client or changes its phone.
func (s *Service) Update(ctx context.Context, scope common.Scope, id string, in ClientInput) (Client, error) {
	if err := s.checkID(scope, id); err != nil {
		return Client{}, err
	}
	in = in.normalize()
	if err := common.ValidateStruct(in); err != nil {
		return Client{}, err
	}
	c, err := s.Store.Update(ctx, scope.BusinessID, id, in)
	if err != nil {
		return Client{}, mapStoreError("update client", err)
	}
	return c, nil
}

// Delete removes a client that owes nothing.
func (s *Service) Delete(ctx context.Context, scope common.Scope, id string) error {
	if err := s.checkID(scope, id); err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, scope.BusinessID, id); err != nil {
		return mapStoreError("delete client", err)
	}
	return nil
}

// RecordPayment applies a payment to the client's debt. The amount must be
// positive and not exceed what the client owes.
func (s *Service) RecordPayment(ctx context.Context, scope common.Scope, clientID string, in PaymentInput) (Payment, Client, error) {
	if err := s.checkID(scope, clientID); err != nil {
		return Payment{}, Client{}, err
	}
	in.Note = strings.TrimSpace(in.Note)
	in.Method = strings.ToLower(strings.TrimSpace(in.Method))
	if in.Method == "" {
		in.Method = "cash"
	}
	if err := common.ValidateStruct(in); err != nil {
		return Payment{}, Client{}, err
	}
	in.Amount = in.Amount.Round(2)
	p, c, err := s.Store.RecordPayment(ctx, scope.BusinessID, clientID, scope.Operator, in)
	if err != nil {
		return Payment{}, Client{}, mapStoreError("record payment", err)
	}
	zerolog.Ctx(ctx).Info().
		Str("business_id", scope.BusinessID).
		Str("client_id", c.ID).
		Str("amount", p.Amount.StringFixed(2)).
		Str("remaining_debt", c.Debt.StringFixed(2)).
		Msg("client payment recorded")
	if s.Events != nil {
		if _, err := s.Events.Emit(ctx, scope.BusinessID, events.TopicPaymentRecorded, p.ID, events.PaymentRecorded{
			PaymentID: p.ID, ClientID: c.ID, Amount: p.Amount, RemainingDebt: c.Debt,
		}); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("payment_id", p.ID).Msg("payment event not emitted")
		}
	}
	return p, c, nil
}

// ListPayments returns the payments inside the window, optionally for one client.
func (s *Service) ListPayments(ctx context.Context, scope common.Scope, r period.Range, clientID string) (PaymentList, error) {
	if err := scope.Require(); err != nil {
		return PaymentList{}, err
	}
	items, err := s.Store.ListPayments(ctx, scope.BusinessID, r, strings.TrimSpace(clientID))
	if err != nil {
		return PaymentList{}, common.Persistence("list payments", err)
	}
	total := decimal.Zero
	for _, p := range items {
		total = total.Add(p.Amount)
	}
	return PaymentList{Period: r, Items: items, Total: total}, nil
}

func (s *Service) checkID(scope common.Scope, id string) error {
	if err := scope.Require(); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return common.NotFound("client")
	}
	return nil
}

func mapStoreError(step string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound("client")
	case errors.Is(err, ErrDuplicateName):
		return common.Conflict(common.CodeConflict, "a client with this name already exists")
	case errors.Is(err, ErrHasDebt):
		return common.ValidationWrap(err, "client still has outstanding debt", nil)
	case errors.Is(err, ErrOverpayment):
		return common.ValidationWrap(err, "payment exceeds the client's debt", nil)
	default:
		return common.Persistence(step, err)
	}
}
