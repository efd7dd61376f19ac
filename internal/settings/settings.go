package settings

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mercadoforte/backend-caixa/internal/cache"
	"github.com/mercadoforte/backend-caixa/internal/common"
)

// ErrNotFound is returned by stores when a business has never saved settings.
var ErrNotFound = errors.New("settings: not found")

// Settings are the per-business switches the till reads.
type Settings struct {
	BusinessName   string `json:"businessName" validate:"max=120"`
	BusinessEmail  string `json:"businessEmail" validate:"omitempty,email"`
	AllowCredit    bool   `json:"allowCredit"`
	ReceiptPrinter bool   `json:"receiptPrinter"`
	ReceiptMessage string `json:"receiptMessage" validate:"max=500"`
}

// Defaults are used until a business saves its own settings.
func Defaults() Settings {
	return Settings{AllowCredit: true, ReceiptMessage: "Obrigado pela preferência!"}
}

// Store persists settings.
type Store interface {
	Get(ctx context.Context, businessID string) (Settings, error)
	Upsert(ctx context.Context, businessID string, s Settings) error
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

func (p *pgStore) Get(ctx context.Context, businessID string) (Settings, error) {
	var s Settings
	err := p.pool.QueryRow(ctx, `SELECT business_name, business_email, allow_credit, receipt_printer, receipt_message
FROM business_settings WHERE business_id = $1`, businessID).
		Scan(&s.BusinessName, &s.BusinessEmail, &s.AllowCredit, &s.ReceiptPrinter, &s.ReceiptMessage)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, ErrNotFound
	}
	return s, err
}

func (p *pgStore) Upsert(ctx context.Context, businessID string, s Settings) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO business_settings (business_id, business_name, business_email, allow_credit, receipt_printer, receipt_message)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (business_id) DO UPDATE SET business_name = EXCLUDED.business_name, business_email = EXCLUDED.business_email,
allow_credit = EXCLUDED.allow_credit, receipt_printer = EXCLUDED.receipt_printer, receipt_message = EXCLUDED.receipt_message,
updated_at = now()`, businessID, s.BusinessName, s.BusinessEmail, s.AllowCredit, s.ReceiptPrinter, s.ReceiptMessage)
	return err
}

// Service reads and writes settings through a Redis cache.
type Service struct {
	Store Store
	Cache *cache.Cache
}

// Get returns the business settings, or the defaults if none were saved.
func (s *Service) Get(ctx context.Context, businessID string) (Settings, error) {
	if strings.TrimSpace(businessID) == "" {
		return Settings{}, common.Validation("business is required", nil)
	}
	key := cache.Settings(businessID)
	var cached Settings
	if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	out, err := s.Store.Get(ctx, businessID)
	switch {
	case errors.Is(err, ErrNotFound):
		out = Defaults()
	case err != nil:
		return Settings{}, common.Persistence("load settings", err)
	}
	if err := s.Cache.SetJSON(ctx, key, out); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("settings cache write failed")
	}
	return out, nil
}

// Update replaces the business settings.
func (s *Service) Update(ctx context.Context, businessID string, in Settings) (Settings, error) {
	if strings.TrimSpace(businessID) == "" {
		return Settings{}, common.Validation("business is required", nil)
	}
	in.BusinessName = strings.TrimSpace(in.BusinessName)
	in.BusinessEmail = strings.TrimSpace(in.BusinessEmail)
	in.ReceiptMessage = strings.TrimSpace(in.ReceiptMessage)
	if err := common.ValidateStruct(in); err != nil {
		return Settings{}, err
	}
	if err := s.Store.Upsert(ctx, businessID, in); err != nil {
		return Settings{}, common.Persistence("save settings", err)
	}
	if err := s.Cache.Delete(ctx, cache.Settings(businessID)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("settings cache invalidation failed")
	}
	return in, nil
}
