package receipt_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mercadoforte/backend-caixa/internal/cart"
	"github.com/mercadoforte/backend-caixa/internal/checkout"
	"github.com/mercadoforte/backend-caixa/internal/events"
	"github.com/mercadoforte/backend-caixa/internal/receipt"
	"github.com/mercadoforte/backend-caixa/internal/resilience"
	"github.com/mercadoforte/backend-caixa/internal/settings"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleSale() checkout.Sale {
	return checkout.Sale{
		ID:         "11111111-1111-1111-1111-111111111111",
		ClientName: "Maria",
		Operator:   "Ana",
		Method:     "cash",
		Items: []cart.LineItem{
			{Name: "Arroz 5kg", UnitPrice: d("25.00"), Quantity: d("2")},
			{Name: "Banana", UnitPrice: d("4.50"), Quantity: d("1.5")},
		},
		Subtotal:     d("56.75"),
		Total:        d("56.75"),
		CashTendered: d("50.00"),
		CashInserted: d("50.00"),
		CreditDue:    d("6.75"),
		CreatedAt:    time.Date(2024, 6, 1, 15, 4, 0, 0, time.UTC),
	}
}

func TestDocumentLayout(t *testing.T) {
	doc := receipt.NewDocument(20)
	doc.KeyValue("Total", "R$ 9,90")
	out := doc.Bytes()
	require.True(t, bytes.HasPrefix(out, []byte{0x1B, '@', 0x1B, 't', 3}))
	require.Contains(t, string(out), "Total        R$ 9,90\n")

	doc = receipt.NewDocument(10)
	doc.KeyValue("Descricao longa", "1,00")
	require.Contains(t, string(doc.Bytes()), "Descr 1,00\n")
}

func TestFormatting(t *testing.T) {
	require.Equal(t, "R$ 1234,50", receipt.Money(d("1234.5")))
	require.Equal(t, "R$ 0,01", receipt.Money(d("0.005")))
	require.Equal(t, "1,5", receipt.Quantity(d("1.50")))
	require.Equal(t, "2", receipt.Quantity(d("2")))
}

func TestRenderSale(t *testing.T) {
	cfg := settings.Settings{BusinessName: "Mercado Forte", ReceiptPrinter: true, ReceiptMessage: "Volte sempre"}
	out := string(receipt.Render(sampleSale(), cfg, 48, time.UTC))

	require.Contains(t, out, "Mercado Forte")
	require.Contains(t, out, "01/06/2024 15:04")
	require.Contains(t, out, "  2 x R$ 25,00")
	require.Contains(t, out, "R$ 50,00")
	require.Contains(t, out, "  1,5 x R$ 4,50")
	require.Contains(t, out, "Fiado")
	require.Contains(t, out, "R$ 6,75")
	require.Contains(t, out, "Volte sempre")
	require.NotContains(t, out, "Troco")
	require.True(t, bytes.HasSuffix([]byte(out), []byte{0x1D, 'V', 0x01}))
}

func TestNewPrinter(t *testing.T) {
	p, err := receipt.NewPrinter("none", "", "", 0)
	require.NoError(t, err)
	require.IsType(t, receipt.NullPrinter{}, p)

	_, err = receipt.NewPrinter("network", "", "", 0)
	require.Error(t, err)
	_, err = receipt.NewPrinter("usb", "", "", 0)
	require.Error(t, err)
	_, err = receipt.NewPrinter("laser", "", "", 0)
	require.Error(t, err)
}

func TestNetworkPrinterWritesBytes(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	p := receipt.NetworkPrinter{Addr: ln.Addr().String(), Timeout: time.Second}
	require.NoError(t, p.Print(context.Background(), []byte("hello")))
	select {
	case data := <-received:
		require.Equal(t, "hello", string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("printer did not receive data")
	}
}

func TestGuardedPrinterTrips(t *testing.T) {
	calls := 0
	failing := receipt.PrinterFunc(func(context.Context, []byte) error {
		calls++
		return errors.New("offline")
	})
	g := receipt.GuardedPrinter{Printer: failing, Breaker: resilience.NewBreaker(2, 0.5, time.Minute)}
	ctx := context.Background()

	require.Error(t, g.Print(ctx, nil))
	require.Error(t, g.Print(ctx, nil))
	require.ErrorIs(t, g.Print(ctx, nil), resilience.ErrOpenCircuit)
	require.Equal(t, 2, calls)
}

type fakeClient struct {
	tasks []*asynq.Task
	ids   map[string]bool
}

func (f *fakeClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.ids == nil {
		f.ids = map[string]bool{}
	}
	key := string(task.Payload())
	if f.ids[key] {
		return nil, asynq.ErrTaskIDConflict
	}
	f.ids[key] = true
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t-1"}, nil
}

func committedEvent(t *testing.T, print bool) events.Event {
	t.Helper()
	ev := events.Event{BusinessID: "loja-1", Topic: events.TopicSaleCommitted}
	payload := events.SaleCommitted{SaleID: "sale-1", PrintReceipt: print}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	ev.Payload = data
	return ev
}

func TestEnqueuerQueuesRequestedReceiptsOnce(t *testing.T) {
	client := &fakeClient{}
	e := receipt.Enqueuer{Client: client, Queue: "receipts", MaxRetry: 3}
	ctx := context.Background()

	require.NoError(t, e.Notify(ctx, committedEvent(t, false)))
	require.Empty(t, client.tasks)

	require.NoError(t, e.Notify(ctx, committedEvent(t, true)))
	require.NoError(t, e.Notify(ctx, committedEvent(t, true)))
	require.Len(t, client.tasks, 1)
	require.Equal(t, receipt.TypePrint, client.tasks[0].Type())
	require.JSONEq(t, `{"businessId":"loja-1","saleId":"sale-1"}`, string(client.tasks[0].Payload()))

	require.NoError(t, e.Notify(ctx, events.Event{Topic: events.TopicSaleDeleted}))
	require.Len(t, client.tasks, 1)
}

type saleReader struct{ sale checkout.Sale }

func (s saleReader) GetSale(_ context.Context, _ string, id string) (checkout.Sale, error) {
	if id != s.sale.ID {
		return checkout.Sale{}, checkout.ErrSaleNotFound
	}
	return s.sale, nil
}

type settingsReader struct{ cfg settings.Settings }

func (s settingsReader) Get(context.Context, string) (settings.Settings, error) { return s.cfg, nil }

func TestProcessorPrints(t *testing.T) {
	var printed []byte
	sale := sampleSale()
	p := &receipt.Processor{
		Sales:    saleReader{sale: sale},
		Settings: settingsReader{cfg: settings.Settings{ReceiptPrinter: true}},
		Printer: receipt.PrinterFunc(func(_ context.Context, data []byte) error {
			printed = append([]byte(nil), data...)
			return nil
		}),
		Width: 32,
	}
	task, err := receipt.NewPrintTask(receipt.Payload{BusinessID: "loja-1", SaleID: sale.ID})
	require.NoError(t, err)
	require.NoError(t, p.ProcessTask(context.Background(), task))
	require.Contains(t, string(printed), "Arroz 5kg")

	printed = nil
	missing, err := receipt.NewPrintTask(receipt.Payload{BusinessID: "loja-1", SaleID: "gone"})
	require.NoError(t, err)
	require.NoError(t, p.ProcessTask(context.Background(), missing))
	require.Nil(t, printed)

	p.Settings = settingsReader{cfg: settings.Settings{ReceiptPrinter: false}}
	require.NoError(t, p.ProcessTask(context.Background(), task))
	require.Nil(t, printed)

	err = p.ProcessTask(context.Background(), asynq.NewTask(receipt.TypePrint, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
