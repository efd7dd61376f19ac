package report

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mercadoforte/backend-caixa/internal/cache"
	"github.com/mercadoforte/backend-caixa/internal/checkout"
	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/events"
	"github.com/mercadoforte/backend-caixa/internal/period"
)

// SalesReport lists the sales of a window with its totals.
type SalesReport struct {
	Period      period.Range               `json:"period"`
	Items       []checkout.Sale            `json:"items"`
	Count       int                        `json:"count"`
	TotalSales  decimal.Decimal            `json:"totalSales"`
	TotalCredit decimal.Decimal            `json:"totalCredit"`
	TotalPaid   decimal.Decimal            `json:"totalPaid"`
	ByMethod    map[string]decimal.Decimal `json:"byMethod"`
}

// Summarize computes the totals of a list of sales.
func Summarize(r period.Range, items []checkout.Sale) SalesReport {
	out := SalesReport{
		Period:      r,
		Items:       items,
		Count:       len(items),
		TotalSales:  decimal.Zero,
		TotalCredit: decimal.Zero,
		ByMethod:    map[string]decimal.Decimal{},
	}
	for _, s := range items {
		out.TotalSales = out.TotalSales.Add(s.Total)
		out.TotalCredit = out.TotalCredit.Add(s.CreditDue)
		out.ByMethod[s.Method] = out.ByMethod[s.Method].Add(s.Total)
	}
	out.TotalPaid = out.TotalSales.Sub(out.TotalCredit)
	return out
}

// Service provides cached access to the sales history.
type Service struct {
	Store    Store
	Cache    *cache.Cache
	Calendar period.Calendar
	Events   *events.Bus
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func salesKey(businessID string, r period.Range) string {
	return cache.Key(businessID, "report", "sales", strconv.FormatInt(r.From.Unix(), 10), strconv.FormatInt(r.To.Unix(), 10))
}

// Sales returns the sales inside r, newest first.
func (s *Service) Sales(ctx context.Context, scope common.Scope, r period.Range) (SalesReport, error) {
	if err := scope.Require(); err != nil {
		return SalesReport{}, err
	}
	key := salesKey(scope.BusinessID, r)
	var cached SalesReport
	if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		cached.Period = r
		return cached, nil
	}
	items, err := s.Store.ListSales(ctx, scope.BusinessID, r.From, r.To)
	if err != nil {
		return SalesReport{}, common.Persistence("list sales", err)
	}
	out := Summarize(r, items)
	if err := s.Cache.SetJSON(ctx, key, out); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("sales report cache write failed")
	}
	return out, nil
}

// GetSale returns one sale.
func (s *Service) GetSale(ctx context.Context, scope common.Scope, id string) (checkout.Sale, error) {
	if err := scope.Require(); err != nil {
		return checkout.Sale{}, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return checkout.Sale{}, common.NotFound("sale")
	}
	sale, err := s.Store.GetSale(ctx, scope.BusinessID, id)
	if errors.Is(err, checkout.ErrSaleNotFound) {
		return checkout.Sale{}, common.NotFound("sale")
	}
	if err != nil {
		return checkout.Sale{}, common.Persistence("get sale", err)
	}
	return sale, nil
}

// DeleteSale removes a sale record. The client's debt and spend are not
// reversed.
func (s *Service) DeleteSale(ctx context.Context, scope common.Scope, id string) error {
	if err := scope.Require(); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return common.NotFound("sale")
	}
	sale, err := s.Store.DeleteSale(ctx, scope.BusinessID, id)
	if errors.Is(err, checkout.ErrSaleNotFound) {
		return common.NotFound("sale")
	}
	if err != nil {
		return common.Persistence("delete sale", err)
	}
	zerolog.Ctx(ctx).Info().Str("sale_id", sale.ID).Str("operator", scope.Operator).Str("total", sale.Total.StringFixed(2)).Msg("sale deleted")
	s.Invalidate(ctx, scope.BusinessID)
	if s.Events != nil {
		if _, err := s.Events.Emit(ctx, scope.BusinessID, events.TopicSaleDeleted, sale.ID, events.SaleDeleted{SaleID: sale.ID, Operator: scope.Operator}); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("sale_id", sale.ID).Msg("sale deleted event failed")
		}
	}
	return nil
}

// Invalidate drops every cached report of a business.
func (s *Service) Invalidate(ctx context.Context, businessID string) {
	if err := s.Cache.DeletePrefix(ctx, cache.ReportPrefix(businessID)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("business_id", businessID).Msg("report cache invalidation failed")
	}
}

// Notifier invalidates cached reports when a sale is committed.
func (s *Service) Notifier() events.Notifier {
	return events.NotifierFunc(func(ctx context.Context, ev events.Event) error {
		if ev.Topic == events.TopicSaleCommitted {
			s.Invalidate(ctx, ev.BusinessID)
		}
		return nil
	})
}
