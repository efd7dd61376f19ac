package report

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mercadoforte/backend-caixa/internal/checkout"
)

// ErrStoreUnavailable indicates the database pool is not configured.
var ErrStoreUnavailable = errors.New("report: store unavailable")

// Store reads and deletes committed sales.
type Store interface {
	ListSales(ctx context.Context, businessID string, from, to time.Time) ([]checkout.Sale, error)
	GetSale(ctx context.Context, businessID, id string) (checkout.Sale, error)
	DeleteSale(ctx context.Context, businessID, id string) (checkout.Sale, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

func (s *pgStore) ListSales(ctx context.Context, businessID string, from, to time.Time) ([]checkout.Sale, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT `+checkout.SaleColumns+` FROM sales
WHERE business_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at DESC`, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]checkout.Sale, 0)
	for rows.Next() {
		sale, err := checkout.ScanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

func (s *pgStore) GetSale(ctx context.Context, businessID, id string) (checkout.Sale, error) {
	if s == nil || s.pool == nil {
		return checkout.Sale{}, ErrStoreUnavailable
	}
	return checkout.ScanSale(s.pool.QueryRow(ctx, `SELECT `+checkout.SaleColumns+` FROM sales WHERE business_id = $1 AND id = $2`, businessID, id))
}

// DeleteSale removes the record and returns it. Client balances and stock
// are left as they are.
func (s *pgStore) DeleteSale(ctx context.Context, businessID, id string) (checkout.Sale, error) {
	if s == nil || s.pool == nil {
		return checkout.Sale{}, ErrStoreUnavailable
	}
	return checkout.ScanSale(s.pool.QueryRow(ctx, `DELETE FROM sales WHERE business_id = $1 AND id = $2 RETURNING `+checkout.SaleColumns, businessID, id))
}
