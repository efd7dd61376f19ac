package sale

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mercadoforte/backend-caixa/internal/cart"
	"github.com/mercadoforte/backend-caixa/internal/catalog"
	"github.com/mercadoforte/backend-caixa/internal/checkout"
	"github.com/mercadoforte/backend-caixa/internal/ledger"
	"github.com/mercadoforte/backend-caixa/internal/pricing"
	"github.com/mercadoforte/backend-caixa/internal/tender"
)

// ErrNoSession is returned when the cashier has no open sale.
var ErrNoSession = errors.New("sale: no open session")

// Session is the in-progress sale of one cashier.
type Session struct {
	ID          string              `json:"id"`
	BusinessID  string              `json:"businessId"`
	Cart        cart.Cart           `json:"cart"`
	Adjustments pricing.Adjustments `json:"adjustments"`
	Inputs      tender.Inputs       `json:"inputs"`
	Machine     tender.Machine      `json:"machine"`
	CommitKey   string              `json:"commitKey"`
	OpenedAt    time.Time           `json:"openedAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

func newSession(businessID, id string, now time.Time) Session {
	s := Session{ID: id, BusinessID: businessID, OpenedAt: now, UpdatedAt: now}
	s.Machine.Reset()
	s.rekey()
	return s
}

// rekey issues a new commit key. Any change to what would be written gets a
// new key so a retry only replays an identical sale.
func (s *Session) rekey() {
	s.CommitKey = uuid.NewString()
}

// Summary prices the cart with the current adjustments.
func (s Session) Summary() pricing.Summary {
	return pricing.Compute(s.Cart.PricingItems(), s.Adjustments)
}

// Tender reconciles the current inputs against the adjusted total.
func (s Session) Tender() tender.Result {
	total := s.Summary().Total
	if s.Machine.Method == "" {
		return tender.Result{Total: total}
	}
	return tender.Reconcile(total, s.Machine.Method, s.Inputs)
}

// fitAdjustments drops adjustments that no longer fit the cart.
func (s *Session) fitAdjustments() {
	if s.Adjustments.Validate(pricing.Round(s.Cart.Subtotal())) != nil {
		s.Adjustments = pricing.Adjustments{}
	}
}

// View is what the till renders after every operation.
type View struct {
	SessionID   string              `json:"sessionId"`
	Stage       tender.Stage        `json:"stage"`
	Items       []cart.LineItem     `json:"items"`
	Count       int                 `json:"count"`
	Units       string              `json:"units"`
	Adjustments pricing.Adjustments `json:"adjustments"`
	Summary     pricing.Summary     `json:"summary"`
	ClientName  string              `json:"clientName,omitempty"`
	ClientPhone string              `json:"clientPhone,omitempty"`
	Inputs      tender.Inputs       `json:"inputs"`
	Tender      tender.Result       `json:"tender"`
	CommitKey   string              `json:"commitKey"`
	Candidates  []catalog.Product   `json:"candidates"`
	Suggestions []ledger.Client     `json:"suggestions,omitempty"`
	Sale        *checkout.Sale      `json:"sale,omitempty"`
	Replayed    bool                `json:"replayed,omitempty"`
}

// NewView renders a session.
func NewView(s Session) View {
	items := s.Cart.Items
	if items == nil {
		items = []cart.LineItem{}
	}
	return View{
		SessionID:   s.ID,
		Stage:       s.Machine.Current(),
		Items:       items,
		Count:       s.Cart.Count(),
		Units:       s.Cart.Units().String(),
		Adjustments: s.Adjustments,
		Summary:     s.Summary(),
		ClientName:  s.Machine.ClientName,
		ClientPhone: s.Machine.ClientPhone,
		Inputs:      s.Inputs,
		Tender:      s.Tender(),
		CommitKey:   s.CommitKey,
	}
}

// SessionStore keeps sessions between requests.
type SessionStore interface {
	Load(ctx context.Context, businessID, id string) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, businessID, id string) error
}

// RedisStore keeps sessions as JSON under sale:session:<business>:<id>.
type RedisStore struct {
	R   *redis.Client
	TTL time.Duration
}

// SessionKey is the Redis key of a session.
func SessionKey(businessID, id string) string {
	return "sale:session:" + businessID + ":" + id
}

func (r RedisStore) Load(ctx context.Context, businessID, id string) (Session, error) {
	if r.R == nil {
		return Session{}, errors.New("sale: redis not configured")
	}
	data, err := r.R.Get(ctx, SessionKey(businessID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (r RedisStore) Save(ctx context.Context, s Session) error {
	if r.R == nil {
		return errors.New("sale: redis not configured")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ttl := r.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return r.R.Set(ctx, SessionKey(s.BusinessID, s.ID), data, ttl).Err()
}

func (r RedisStore) Delete(ctx context.Context, businessID, id string) error {
	if r.R == nil {
		return errors.New("sale: redis not configured")
	}
	return r.R.Del(ctx, SessionKey(businessID, id)).Err()
}
