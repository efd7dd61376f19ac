package app

import (
	"time"

	"github.com/mercadoforte/backend-caixa/internal/audit"
	"github.com/mercadoforte/backend-caixa/internal/cache"
	"github.com/mercadoforte/backend-caixa/internal/catalog"
	"github.com/mercadoforte/backend-caixa/internal/checkout"
	"github.com/mercadoforte/backend-caixa/internal/config"
	"github.com/mercadoforte/backend-caixa/internal/events"
	"github.com/mercadoforte/backend-caixa/internal/expense"
	"github.com/mercadoforte/backend-caixa/internal/ledger"
	"github.com/mercadoforte/backend-caixa/internal/lock"
	"github.com/mercadoforte/backend-caixa/internal/period"
	"github.com/mercadoforte/backend-caixa/internal/receipt"
	"github.com/mercadoforte/backend-caixa/internal/report"
	"github.com/mercadoforte/backend-caixa/internal/sale"
	"github.com/mercadoforte/backend-caixa/internal/settings"
)

// ReceiptQueue is the asynq queue receipt jobs go to.
const ReceiptQueue = "receipts"

// Services are the domain services the API exposes.
type Services struct {
	Bus       *events.Bus
	Catalog   *catalog.Service
	Ledger    *ledger.Service
	Expenses  *expense.Service
	Reports   *report.Service
	Settings  *settings.Service
	Committer *checkout.Committer
	Sales     *sale.Service
	Audit     *audit.Service
}

// NewServices wires the domain on top of d. Committed sales fan out to the
// report cache and, when printing is enabled, to the receipt queue.
func NewServices(cfg *config.Config, d *Dependencies) (*Services, error) {
	loc := cfg.Location()
	bus := &events.Bus{Store: events.NewStore(d.DB)}

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Store:        catalog.NewStore(d.DB),
		Cache:        cache.New(d.Redis, cfg.CatalogCacheTTL),
		DefaultLimit: cfg.CatalogDefaultLimit,
		MaxLimit:     cfg.CatalogMaxLimit,
	})
	if err != nil {
		return nil, err
	}
	settingsSvc := &settings.Service{Store: settings.NewStore(d.DB), Cache: cache.New(d.Redis, cfg.SettingsCacheTTL)}
	ledgerSvc := &ledger.Service{Store: ledger.NewStore(d.DB), Calendar: period.BusinessDay(loc), Events: bus}
	reports := &report.Service{
		Store:    report.NewStore(d.DB),
		Cache:    cache.New(d.Redis, cfg.ReportCacheTTL),
		Calendar: period.BusinessDay(loc),
		Events:   bus,
	}
	bus.Notifiers = []events.Notifier{
		reports.Notifier(),
		receipt.Enqueuer{Client: d.Tasks, Queue: ReceiptQueue, MaxRetry: cfg.ReceiptMaxRetry, Retention: 24 * time.Hour},
	}

	committer := &checkout.Committer{
		Store:       checkout.NewStore(d.DB),
		Events:      bus,
		Catalog:     catalogSvc,
		StepTimeout: cfg.CheckoutStepTimeout,
	}
	sales := &sale.Service{
		Sessions:  &sale.RedisStore{R: d.Redis, TTL: cfg.SaleSessionTTL},
		Catalog:   catalogSvc,
		Clients:   ledgerSvc,
		Settings:  settingsSvc,
		Committer: committer,
		Locker:    lock.Locker{R: d.Redis},
		LockTTL:   cfg.CommitLockTTL,
	}

	return &Services{
		Bus:       bus,
		Catalog:   catalogSvc,
		Ledger:    ledgerSvc,
		Expenses:  &expense.Service{Store: expense.NewStore(d.DB), Calendar: period.CalendarDay(loc)},
		Reports:   reports,
		Settings:  settingsSvc,
		Committer: committer,
		Sales:     sales,
		Audit:     &audit.Service{Store: audit.NewStore(d.DB), Enabled: cfg.AuditEnabled},
	}, nil
}
