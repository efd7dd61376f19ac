package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mercadoforte/backend-caixa/internal/events"
)

type stubStore struct {
	last events.Event
	err  error
}

func (s *stubStore) InsertDomainEvent(_ context.Context, ev events.Event) (events.Event, error) {
	if s.err != nil {
		return events.Event{}, s.err
	}
	ev.ID = uuid.NewString()
	ev.OccurredAt = time.Now()
	s.last = ev
	return ev, nil
}

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

func TestEmitPersistsAndNotifies(t *testing.T) {
	store := &stubStore{}
	notifier := &captureNotifier{}
	bus := events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	saleID := uuid.NewString()
	ev, err := bus.Emit(context.Background(), "loja-1", events.TopicSaleCommitted, saleID, events.SaleCommitted{
		SaleID: saleID, Method: "credit", Total: decimal.RequireFromString("40"), CreditDue: decimal.RequireFromString("40"),
	})
	require.NoError(t, err)
	require.Equal(t, "loja-1", store.last.BusinessID)
	require.Equal(t, saleID, store.last.AggregateID)
	require.Len(t, notifier.events, 1)
	require.Equal(t, ev.ID, notifier.events[0].ID)

	var decoded events.SaleCommitted
	require.NoError(t, notifier.events[0].Decode(&decoded))
	require.Equal(t, "40", decoded.CreditDue.String())
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	boom := errors.New("printer offline")
	first := &captureNotifier{err: boom}
	second := &captureNotifier{}
	bus := events.Bus{Store: &stubStore{}, Notifiers: []events.Notifier{first, nil, second}}

	_, err := bus.Emit(context.Background(), "loja-1", events.TopicSaleDeleted, uuid.NewString(), nil)
	require.ErrorIs(t, err, boom)
	require.Len(t, second.events, 1)
}

func TestEmitValidation(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), "loja-1", " ", "x", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), "loja-1", events.TopicSaleDeleted, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), "loja-1", events.TopicSaleDeleted, "x", []byte("{bad"))
	require.Error(t, err)

	var nilBus *events.Bus
	_, err = nilBus.Emit(context.Background(), "loja-1", events.TopicSaleDeleted, "x", nil)
	require.Error(t, err)

}

func TestEmitNotifiesWhenPersistFails(t *testing.T) {
	dbDown := errors.New("db down")
	notifier := &captureNotifier{}
	bus := events.Bus{Store: &stubStore{err: dbDown}, Notifiers: []events.Notifier{notifier}}

	saleID := uuid.NewString()
	ev, err := bus.Emit(context.Background(), "loja-1", events.TopicSaleCommitted, saleID, events.SaleCommitted{SaleID: saleID, PrintReceipt: true})
	require.ErrorIs(t, err, dbDown)
	require.Empty(t, ev.ID)
	require.False(t, ev.OccurredAt.IsZero())
	require.Len(t, notifier.events, 1)
	require.Equal(t, "loja-1", notifier.events[0].BusinessID)

	var decoded events.SaleCommitted
	require.NoError(t, notifier.events[0].Decode(&decoded))
	require.Equal(t, saleID, decoded.SaleID)
}

func TestNotifierFunc(t *testing.T) {
	called := false
	n := events.NotifierFunc(func(context.Context, events.Event) error {
		called = true
		return nil
	})
	require.NoError(t, n.Notify(context.Background(), events.Event{}))
	require.True(t, called)
}
