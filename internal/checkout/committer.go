package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mercadoforte/backend-caixa/internal/cart"
	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/events"
	"github.com/mercadoforte/backend-caixa/internal/obs"
	"github.com/mercadoforte/backend-caixa/internal/pricing"
	"github.com/mercadoforte/backend-caixa/internal/tender"
)

// Commit steps, reported on failures and in metrics.
const (
	StepLookup        = "lookup"
	StepResolveClient = "resolve_client"
	StepUpdateClient  = "update_client"
	StepInsertSale    = "insert_sale"
	StepStock         = "decrement_stock"
	StepCommit        = "commit"
)

const defaultStepTimeout = 10 * time.Second

// CatalogInvalidator drops cached catalog reads after stock changes.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context, businessID string)
}

// Request is everything needed to write one sale.
type Request struct {
	CommitKey    string
	ClientName   string
	ClientPhone  string
	Items        []cart.LineItem
	Summary      pricing.Summary
	Tender       tender.Result
	AllowCredit  bool
	PrintReceipt bool
}

// Outcome is the result of a commit. Replayed is set when the commit key had
// already been used and the stored sale is returned instead.
type Outcome struct {
	Sale     Sale      `json:"sale"`
	Client   ClientRef `json:"-"`
	Replayed bool      `json:"replayed"`
}

// Committer applies a sale atomically: client balance, sale record and
// stock either all change or none do.
type Committer struct {
	Store       Store
	Events      *events.Bus
	Catalog     CatalogInvalidator
	StepTimeout time.Duration
}

// Commit validates the request and writes it. Once started the write is not
// cancelled by the caller; every step is bounded by StepTimeout instead.
func (c *Committer) Commit(ctx context.Context, scope common.Scope, req Request) (Outcome, error) {
	if err := scope.Require(); err != nil {
		return Outcome{}, err
	}
	if err := validateRequest(req); err != nil {
		return Outcome{}, err
	}
	if err := tender.CheckSubmission(req.Tender, req.AllowCredit); err != nil {
		return Outcome{}, err
	}
	if c.Store == nil {
		return Outcome{}, common.Persistence(StepLookup, ErrStoreUnavailable)
	}

	base := context.WithoutCancel(ctx)
	logger := zerolog.Ctx(ctx)
	started := time.Now()

	existing, err := c.lookup(base, scope.BusinessID, req.CommitKey)
	if err != nil {
		obs.ObserveCommitFailure(StepLookup)
		return Outcome{}, common.Persistence(StepLookup, err)
	}
	if existing != nil {
		logger.Info().Str("sale_id", existing.ID).Str("commit_key", req.CommitKey).Msg("sale commit replayed")
		return Outcome{Sale: *existing, Replayed: true}, nil
	}

	sale := Sale{
		BusinessID:      scope.BusinessID,
		CommitKey:       req.CommitKey,
		Operator:        scope.Operator,
		OperatorID:      scope.OperatorID,
		Method:          string(req.Tender.Method),
		Items:           req.Items,
		Subtotal:        req.Summary.Subtotal,
		Extra:           req.Summary.Extra,
		FixedDiscount:   req.Summary.FixedDiscount,
		PercentDiscount: req.Summary.PercentDiscount,
		Total:           req.Tender.Total,
		CashTendered:    req.Tender.CashTendered,
		PixTendered:     req.Tender.PixTendered,
		CashInserted:    req.Tender.CashInserted,
		CreditDue:       req.Tender.CreditDue,
		ChangeDue:       req.Tender.ChangeDue,
	}
	clientName := strings.TrimSpace(req.ClientName)
	phone := strings.TrimSpace(req.ClientPhone)

	var (
		failed string
		client ClientRef
	)
	run := func(ctx context.Context, step string, fn func(context.Context) error) error {
		stepCtx, cancel := context.WithTimeout(ctx, c.stepTimeout())
		defer cancel()
		if err := fn(stepCtx); err != nil {
			failed = step
			return err
		}
		return nil
	}

	err = c.Store.WithinTx(base, func(ctx context.Context, tx Tx) error {
		if err := run(ctx, StepResolveClient, func(ctx context.Context) error {
			ref, err := tx.ResolveClient(ctx, scope.BusinessID, clientName)
			client = ref
			return err
		}); err != nil {
			return err
		}
		if err := run(ctx, StepUpdateClient, func(ctx context.Context) error {
			return tx.ApplyToClient(ctx, scope.BusinessID, client.ID, sale.CreditDue, sale.Total, phone)
		}); err != nil {
			return err
		}
		sale.ClientID = client.ID
		sale.ClientName = client.Name
		if err := run(ctx, StepInsertSale, func(ctx context.Context) error {
			return tx.InsertSale(ctx, &sale)
		}); err != nil {
			return err
		}
		for _, item := range stockOrder(sale.Items) {
			item := item
			if err := run(ctx, StepStock, func(ctx context.Context) error {
				touched, err := tx.DecrementStock(ctx, scope.BusinessID, item)
				if err == nil && !touched {
					logger.Warn().Str("product_id", item.ProductID).Str("name", item.Name).Msg("sold item has no catalog product")
				}
				return err
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateCommit) {
			if prior, lookupErr := c.lookup(base, scope.BusinessID, req.CommitKey); lookupErr == nil && prior != nil {
				return Outcome{Sale: *prior, Replayed: true}, nil
			}
		}
		if failed == "" {
			failed = StepCommit
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%s timed out: %w", failed, err)
		}
		obs.ObserveCommitFailure(failed)
		logger.Error().Err(err).Str("step", failed).Str("commit_key", req.CommitKey).Msg("sale commit failed")
		return Outcome{}, common.Persistence(failed, err)
	}

	elapsed := time.Since(started)
	obs.ObserveCommit(sale.Method, float64(elapsed.Milliseconds()), sale.CreditDue.InexactFloat64())
	logger.Info().
		Str("sale_id", sale.ID).
		Str("client_id", sale.ClientID).
		Str("method", sale.Method).
		Str("total", sale.Total.StringFixed(2)).
		Str("credit_due", sale.CreditDue.StringFixed(2)).
		Dur("elapsed", elapsed).
		Msg("sale committed")

	c.afterCommit(base, sale, req.PrintReceipt)
	return Outcome{Sale: sale, Client: client}, nil
}

// afterCommit runs follow-up work. Failures are logged and never undo the sale.
func (c *Committer) afterCommit(ctx context.Context, sale Sale, printReceipt bool) {
	if c.Catalog != nil {
		c.Catalog.Invalidate(ctx, sale.BusinessID)
	}
	if c.Events == nil {
		return
	}
	_, err := c.Events.Emit(ctx, sale.BusinessID, events.TopicSaleCommitted, sale.ID, events.SaleCommitted{
		SaleID:       sale.ID,
		ClientID:     sale.ClientID,
		ClientName:   sale.ClientName,
		Method:       sale.Method,
		Total:        sale.Total,
		CreditDue:    sale.CreditDue,
		Operator:     sale.Operator,
		PrintReceipt: printReceipt,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("sale_id", sale.ID).Msg("sale committed event failed")
	}
}

func (c *Committer) lookup(ctx context.Context, businessID, key string) (*Sale, error) {
	stepCtx, cancel := context.WithTimeout(ctx, c.stepTimeout())
	defer cancel()
	sale, err := c.Store.FindByCommitKey(stepCtx, businessID, key)
	if errors.Is(err, ErrSaleNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (c *Committer) stepTimeout() time.Duration {
	if c.StepTimeout <= 0 {
		return defaultStepTimeout
	}
	return c.StepTimeout
}

func validateRequest(req Request) error {
	fields := map[string]string{}
	if strings.TrimSpace(req.CommitKey) == "" {
		fields["commitKey"] = "is required"
	}
	if strings.TrimSpace(req.ClientName) == "" {
		fields["clientName"] = "is required"
	}
	if len(req.Items) == 0 {
		fields["items"] = "cart is empty"
	}
	if _, err := tender.ParseMethod(string(req.Tender.Method)); err != nil {
		fields["method"] = "is invalid"
	}
	if !req.Tender.Total.Equal(req.Summary.Total) {
		fields["total"] = "does not match the priced cart"
	}
	if req.Tender.Total.IsNegative() {
		fields["total"] = "must not be negative"
	}
	if len(fields) > 0 {
		return common.Validation("sale cannot be committed", fields)
	}
	return nil
}
