package sale

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mercadoforte/backend-caixa/internal/cart"
	"github.com/mercadoforte/backend-caixa/internal/catalog"
	"github.com/mercadoforte/backend-caixa/internal/checkout"
	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/ledger"
	"github.com/mercadoforte/backend-caixa/internal/lock"
	"github.com/mercadoforte/backend-caixa/internal/pricing"
	"github.com/mercadoforte/backend-caixa/internal/settings"
	"github.com/mercadoforte/backend-caixa/internal/tender"
)

// CodeCommitInProgress is returned while another commit of the same session runs.
const CodeCommitInProgress = "COMMIT_IN_PROGRESS"

// Catalog resolves typed terms and product ids.
type Catalog interface {
	Resolve(ctx context.Context, scope common.Scope, term string) (catalog.Resolution, error)
	Get(ctx context.Context, scope common.Scope, id string) (catalog.Product, error)
}

// Clients suggests existing client names.
type Clients interface {
	Suggest(ctx context.Context, scope common.Scope, prefix string) ([]ledger.Client, error)
}

// Settings reads the business switches checkout depends on.
type Settings interface {
	Get(ctx context.Context, businessID string) (settings.Settings, error)
}

// Committer writes a finished sale.
type Committer interface {
	Commit(ctx context.Context, scope common.Scope, req checkout.Request) (checkout.Outcome, error)
}

// Locker serializes writes to one session, commit included.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service drives the cashier's sale from the first scan to commit.
type Service struct {
	Sessions  SessionStore
	Catalog   Catalog
	Clients   Clients
	Settings  Settings
	Committer Committer
	Locker    Locker
	LockTTL   time.Duration
	Now       func() time.Time
}

// AdjustmentsInput is entered by the operator. PercentPoints is 10 for 10%.
type AdjustmentsInput struct {
	Extra         decimal.Decimal `json:"extra"`
	FixedDiscount decimal.Decimal `json:"fixedDiscount"`
	PercentPoints decimal.Decimal `json:"percentDiscount"`
}

// CommitInput carries per-commit options. A nil PrintReceipt follows the
// business settings.
type CommitInput struct {
	PrintReceipt *bool `json:"printReceipt"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func sessionID(scope common.Scope) (string, error) {
	if err := scope.Require(); err != nil {
		return "", err
	}
	id := strings.TrimSpace(scope.OperatorID)
	if id == "" {
		id = strings.TrimSpace(scope.Operator)
	}
	if id == "" {
		return "", common.Validation("operator is required", nil)
	}
	return id, nil
}

func (s *Service) load(ctx context.Context, scope common.Scope) (Session, error) {
	id, err := sessionID(scope)
	if err != nil {
		return Session{}, err
	}
	sess, err := s.Sessions.Load(ctx, scope.BusinessID, id)
	if errors.Is(err, ErrNoSession) {
		return Session{}, common.NotFound("sale session")
	}
	if err != nil {
		return Session{}, common.Persistence("load sale session", err)
	}
	return sess, nil
}

func (s *Service) save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = s.now()
	if err := s.Sessions.Save(ctx, *sess); err != nil {
		return common.Persistence("save sale session", err)
	}
	return nil
}

// mutate loads the session, applies fn and saves the result. It holds the
// session lock so an edit can never land on top of a commit in flight.
func (s *Service) mutate(ctx context.Context, scope common.Scope, fn func(*Session) error) (View, error) {
	var view View
	err := s.locked(ctx, scope, func(ctx context.Context) error {
		sess, err := s.load(ctx, scope)
		if err != nil {
			return err
		}
		if err := fn(&sess); err != nil {
			return err
		}
		if err := s.save(ctx, &sess); err != nil {
			return err
		}
		view = NewView(sess)
		return nil
	})
	return view, err
}

// LockKey is the Redis key guarding a session against overlapping writes.
func LockKey(businessID, sessionID string) string {
	return "sale:commit:" + businessID + ":" + sessionID
}

// locked runs fn while holding the session lock. A held lock is reported as
// CodeCommitInProgress; the caller may retry once the commit settles.
func (s *Service) locked(ctx context.Context, scope common.Scope, fn func(context.Context) error) error {
	id, err := sessionID(scope)
	if err != nil {
		return err
	}
	err = s.Locker.TryWithLock(ctx, LockKey(scope.BusinessID, id), s.LockTTL, fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lock.ErrLocked):
		return common.Conflict(CodeCommitInProgress, "this sale is being committed")
	case common.IsAppError(err):
		return err
	default:
		return common.Persistence("lock sale session", err)
	}
}

// Open returns the cashier's open sale, starting one if there is none.
func (s *Service) Open(ctx context.Context, scope common.Scope) (View, error) {
	sess, err := s.load(ctx, scope)
	if err == nil {
		return NewView(sess), nil
	}
	if !common.HasCode(err, common.CodeNotFound) {
		return View{}, err
	}
	id, _ := sessionID(scope)
	sess = newSession(scope.BusinessID, id, s.now())
	if err := s.save(ctx, &sess); err != nil {
		return View{}, err
	}
	zerolog.Ctx(ctx).Debug().Str("session_id", id).Msg("sale session opened")
	return NewView(sess), nil
}

// Get returns the open sale.
func (s *Service) Get(ctx context.Context, scope common.Scope) (View, error) {
	sess, err := s.load(ctx, scope)
	if err != nil {
		return View{}, err
	}
	return NewView(sess), nil
}

// Scan handles input from the product field. A code match is added right
// away; otherwise the candidates are returned for the operator to pick. No
// match is an empty candidate list, not an error.
func (s *Service) Scan(ctx context.Context, scope common.Scope, input string) (View, error) {
	tok, err := cart.ParseToken(input)
	if err != nil {
		return View{}, err
	}
	res, err := s.Catalog.Resolve(ctx, scope, tok.Term)
	if err != nil {
		return View{}, err
	}
	if res.Exact != nil {
		return s.addProduct(ctx, scope, *res.Exact, tok.Quantity)
	}
	view, err := s.Get(ctx, scope)
	if err != nil {
		return View{}, err
	}
	view.Candidates = res.Candidates
	if view.Candidates == nil {
		view.Candidates = []catalog.Product{}
	}
	return view, nil
}

// AddProduct adds qty of a catalog product picked by id.
func (s *Service) AddProduct(ctx context.Context, scope common.Scope, productID string, qty decimal.Decimal) (View, error) {
	p, err := s.Catalog.Get(ctx, scope, productID)
	if err != nil {
		return View{}, err
	}
	return s.addProduct(ctx, scope, p, qty)
}

// Confirm adds the best match for input: the code match or the first
// candidate. A positive qty overrides the quantity prefix of input.
func (s *Service) Confirm(ctx context.Context, scope common.Scope, input string, qty decimal.Decimal) (View, error) {
	tok, err := cart.ParseToken(input)
	if err != nil {
		return View{}, err
	}
	if qty.IsPositive() {
		tok.Quantity = qty
	}
	res, err := s.Catalog.Resolve(ctx, scope, tok.Term)
	if err != nil {
		return View{}, err
	}
	switch {
	case res.Exact != nil:
		return s.addProduct(ctx, scope, *res.Exact, tok.Quantity)
	case len(res.Candidates) > 0:
		return s.addProduct(ctx, scope, res.Candidates[0], tok.Quantity)
	}
	return View{}, common.NotFound("product")
}

func (s *Service) addProduct(ctx context.Context, scope common.Scope, p catalog.Product, qty decimal.Decimal) (View, error) {
	return s.mutate(ctx, scope, func(sess *Session) error {
		if err := sess.Cart.AddItem(p.CartProduct(), qty); err != nil {
			return err
		}
		sess.rekey()
		return nil
	})
}

// RemoveItem deletes the line at index. Adjustments that no longer fit the
// smaller cart are cleared.
func (s *Service) RemoveItem(ctx context.Context, scope common.Scope, index int) (View, error) {
	return s.mutate(ctx, scope, func(sess *Session) error {
		if err := sess.Cart.RemoveItem(index); err != nil {
			return err
		}
		sess.fitAdjustments()
		sess.rekey()
		return nil
	})
}

// SetAdjustments replaces the extra charge and discounts.
func (s *Service) SetAdjustments(ctx context.Context, scope common.Scope, in AdjustmentsInput) (View, error) {
	adj := pricing.Adjustments{
		Extra:           in.Extra,
		FixedDiscount:   in.FixedDiscount,
		PercentDiscount: pricing.PercentFromPoints(in.PercentPoints),
	}
	return s.mutate(ctx, scope, func(sess *Session) error {
		if err := adj.Validate(pricing.Round(sess.Cart.Subtotal())); err != nil {
			return err
		}
		sess.Adjustments = adj
		sess.rekey()
		return nil
	})
}

// SetClient records who the sale is for and returns name suggestions.
func (s *Service) SetClient(ctx context.Context, scope common.Scope, name, phone string) (View, error) {
	view, err := s.mutate(ctx, scope, func(sess *Session) error {
		if err := sess.Machine.SetClient(name, phone); err != nil {
			return err
		}
		sess.rekey()
		return nil
	})
	if err != nil {
		return View{}, err
	}
	if s.Clients != nil && view.ClientName != "" {
		suggestions, err := s.Clients.Suggest(ctx, scope, view.ClientName)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("client suggestions failed")
		}
		view.Suggestions = suggestions
	}
	return view, nil
}

// SelectMethod records the payment method.
func (s *Service) SelectMethod(ctx context.Context, scope common.Scope, method string) (View, error) {
	m, err := tender.ParseMethod(method)
	if err != nil {
		return View{}, err
	}
	return s.mutate(ctx, scope, func(sess *Session) error {
		if err := sess.Machine.SelectMethod(m); err != nil {
			return err
		}
		sess.rekey()
		return nil
	})
}

// SetAmounts records the tendered amounts. The reconciliation in the
// returned view reflects them.
func (s *Service) SetAmounts(ctx context.Context, scope common.Scope, in tender.Inputs) (View, error) {
	if err := in.Validate(); err != nil {
		return View{}, err
	}
	return s.mutate(ctx, scope, func(sess *Session) error {
		sess.Inputs = in
		sess.rekey()
		return nil
	})
}

// Advance moves the tender flow forward. Checkout cannot start on an empty cart.
func (s *Service) Advance(ctx context.Context, scope common.Scope) (View, error) {
	return s.mutate(ctx, scope, func(sess *Session) error {
		if sess.Cart.Empty() {
			return common.Validation("cart is empty", nil)
		}
		return sess.Machine.Advance()
	})
}

// Back returns to the previous tender stage.
func (s *Service) Back(ctx context.Context, scope common.Scope) (View, error) {
	return s.mutate(ctx, scope, func(sess *Session) error {
		return sess.Machine.Back()
	})
}

// Cancel discards the sale and starts over at client entry.
func (s *Service) Cancel(ctx context.Context, scope common.Scope) (View, error) {
	return s.mutate(ctx, scope, func(sess *Session) error {
		sess.Cart.Clear()
		sess.Adjustments = pricing.Adjustments{}
		sess.Inputs = tender.Inputs{}
		sess.Machine.Reset()
		sess.rekey()
		return nil
	})
}

// Commit writes the sale. On success the session starts over and the view
// carries the written sale; on failure the session is left as it was so the
// whole sale can be retried.
func (s *Service) Commit(ctx context.Context, scope common.Scope, in CommitInput) (View, error) {
	var view View
	err := s.locked(ctx, scope, func(ctx context.Context) error {
		v, err := s.commit(ctx, scope, in)
		view = v
		return err
	})
	if err != nil {
		return View{}, err
	}
	return view, nil
}

func (s *Service) commit(ctx context.Context, scope common.Scope, in CommitInput) (View, error) {
	sess, err := s.load(ctx, scope)
	if err != nil {
		return View{}, err
	}
	if err := sess.Machine.CanCommit(); err != nil {
		return View{}, err
	}
	if sess.Cart.Empty() {
		return View{}, common.Validation("cart is empty", nil)
	}
	cfg, err := s.Settings.Get(ctx, scope.BusinessID)
	if err != nil {
		return View{}, err
	}
	printReceipt := cfg.ReceiptPrinter
	if in.PrintReceipt != nil {
		printReceipt = cfg.ReceiptPrinter && *in.PrintReceipt
	}

	out, err := s.Committer.Commit(ctx, scope, checkout.Request{
		CommitKey:    sess.CommitKey,
		ClientName:   sess.Machine.ClientName,
		ClientPhone:  sess.Machine.ClientPhone,
		Items:        sess.Cart.Items,
		Summary:      sess.Summary(),
		Tender:       sess.Tender(),
		AllowCredit:  cfg.AllowCredit,
		PrintReceipt: printReceipt,
	})
	if err != nil {
		return View{}, err
	}

	next := newSession(sess.BusinessID, sess.ID, s.now())
	if err := s.save(ctx, &next); err != nil {
		// The sale is written; a retry replays it through the unchanged commit key.
		zerolog.Ctx(ctx).Warn().Err(err).Str("sale_id", out.Sale.ID).Msg("sale session reset failed")
		next = sess
		_ = next.Machine.MarkCommitted()
	}
	view := NewView(next)
	view.Sale = &out.Sale
	view.Replayed = out.Replayed
	return view, nil
}
