package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/mercadoforte/backend-caixa/internal/checkout"
	"github.com/mercadoforte/backend-caixa/internal/events"
	"github.com/mercadoforte/backend-caixa/internal/obs"
	"github.com/mercadoforte/backend-caixa/internal/settings"
)

// TypePrint is the asynq task type for printing a sale receipt.
const TypePrint = "receipt:print"

// Payload identifies the sale to print.
type Payload struct {
	BusinessID string `json:"businessId"`
	SaleID     string `json:"saleId"`
}

// NewPrintTask builds the task for a sale.
func NewPrintTask(p Payload, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePrint, data, opts...), nil
}

// TaskClient is the part of asynq.Client the enqueuer uses.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer queues a print job for every committed sale that asked for one.
type Enqueuer struct {
	Client    TaskClient
	Queue     string
	MaxRetry  int
	Retention time.Duration
}

// Notify implements events.Notifier.
func (e Enqueuer) Notify(ctx context.Context, ev events.Event) error {
	if ev.Topic != events.TopicSaleCommitted || e.Client == nil {
		return nil
	}
	var payload events.SaleCommitted
	if err := ev.Decode(&payload); err != nil {
		return fmt.Errorf("receipt: decode event: %w", err)
	}
	if !payload.PrintReceipt {
		return nil
	}
	return e.Enqueue(ctx, Payload{BusinessID: ev.BusinessID, SaleID: payload.SaleID})
}

// Enqueue queues a print job. A sale is queued at most once while its task
// is retained.
func (e Enqueuer) Enqueue(ctx context.Context, p Payload) error {
	opts := []asynq.Option{asynq.TaskID(TypePrint + ":" + p.SaleID)}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	if e.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(e.MaxRetry))
	}
	if e.Retention > 0 {
		opts = append(opts, asynq.Retention(e.Retention))
	}
	task, err := NewPrintTask(p, opts...)
	if err != nil {
		return err
	}
	info, err := e.Client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("receipt: enqueue: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("task_id", info.ID).Str("sale_id", p.SaleID).Msg("receipt queued")
	return nil
}

// SaleReader loads a committed sale.
type SaleReader interface {
	GetSale(ctx context.Context, businessID, id string) (checkout.Sale, error)
}

// SettingsReader loads business settings.
type SettingsReader interface {
	Get(ctx context.Context, businessID string) (settings.Settings, error)
}

// Processor prints queued receipts.
type Processor struct {
	Sales    SaleReader
	Settings SettingsReader
	Printer  Printer
	Width    int
	Location *time.Location
	Logger   zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (p *Processor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload Payload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		obs.ObserveReceipt("invalid")
		return fmt.Errorf("receipt: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := p.Logger.With().Str("sale_id", payload.SaleID).Str("business_id", payload.BusinessID).Logger()

	sale, err := p.Sales.GetSale(ctx, payload.BusinessID, payload.SaleID)
	if errors.Is(err, checkout.ErrSaleNotFound) {
		obs.ObserveReceipt("skipped")
		logger.Warn().Msg("receipt skipped: sale no longer exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("receipt: load sale: %w", err)
	}
	cfg, err := p.Settings.Get(ctx, payload.BusinessID)
	if err != nil {
		return fmt.Errorf("receipt: load settings: %w", err)
	}
	if !cfg.ReceiptPrinter {
		obs.ObserveReceipt("skipped")
		return nil
	}

	data := Render(sale, cfg, p.Width, p.Location)
	if err := p.Printer.Print(ctx, data); err != nil {
		obs.ObserveReceipt("failed")
		logger.Error().Err(err).Msg("receipt print failed")
		return err
	}
	obs.ObserveReceipt("printed")
	logger.Info().Int("bytes", len(data)).Msg("receipt printed")
	return nil
}
