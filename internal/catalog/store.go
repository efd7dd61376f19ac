package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a product does not exist in the business.
	ErrNotFound = errors.New("catalog: product not found")
	// ErrDuplicateCode is returned when a code is already used in the business.
	ErrDuplicateCode = errors.New("catalog: duplicate product code")
	// ErrStoreUnavailable indicates the database pool is not configured.
	ErrStoreUnavailable = errors.New("catalog: store unavailable")
)

// Store is the persistence surface the catalog service needs.
type Store interface {
	GetByCode(ctx context.Context, businessID, code string) (Product, error)
	Get(ctx context.Context, businessID, id string) (Product, error)
	SearchNamePrefix(ctx context.Context, businessID, prefix string, limit int) ([]Product, error)
	SearchKeyword(ctx context.Context, businessID, keyword string, limit int) ([]Product, error)
	List(ctx context.Context, businessID, q string, limit, offset int) ([]Product, int64, error)
	ListAll(ctx context.Context, businessID string) ([]Product, error)
	Insert(ctx context.Context, businessID string, in ProductInput) (Product, error)
	Update(ctx context.Context, businessID, id string, in ProductInput) (Product, error)
	Delete(ctx context.Context, businessID, id string) error
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const productColumns = `id, code, name, price, cost_price, margin_percent, stock, category, keywords, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Price, &p.CostPrice, &p.MarginPercent, &p.Stock, &p.Category, &p.Keywords, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if p.Keywords == nil {
		p.Keywords = []string{}
	}
	return p, err
}

func collectProducts(rows pgx.Rows, err error) ([]Product, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *pgStore) GetByCode(ctx context.Context, businessID, code string) (Product, error) {
	if s == nil || s.pool == nil {
		return Product{}, ErrStoreUnavailable
	}
	return scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE business_id = $1 AND code = $2`, businessID, code))
}

func (s *pgStore) Get(ctx context.Context, businessID, id string) (Product, error) {
	if s == nil || s.pool == nil {
		return Product{}, ErrStoreUnavailable
	}
	return scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE business_id = $1 AND id = $2`, businessID, id))
}

func (s *pgStore) SearchNamePrefix(ctx context.Context, businessID, prefix string, limit int) ([]Product, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products
WHERE business_id = $1 AND lower(name) LIKE $2 ESCAPE '\'
ORDER BY lower(name) LIMIT $3`, businessID, likePrefix(prefix), limit)
	return collectProducts(rows, err)
}

func (s *pgStore) SearchKeyword(ctx context.Context, businessID, keyword string, limit int) ([]Product, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products
WHERE business_id = $1 AND $2 = ANY(keywords)
ORDER BY lower(name) LIMIT $3`, businessID, strings.ToLower(keyword), limit)
	return collectProducts(rows, err)
}

func (s *pgStore) List(ctx context.Context, businessID, q string, limit, offset int) ([]Product, int64, error) {
	if s == nil || s.pool == nil {
		return nil, 0, ErrStoreUnavailable
	}
	filter := `business_id = $1`
	args := []any{businessID}
	if q = strings.TrimSpace(q); q != "" {
		filter += ` AND (lower(name) LIKE $2 ESCAPE '\' OR code = $3)`
		args = append(args, "%"+escapeLike(strings.ToLower(q))+"%", q)
	}
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM products WHERE `+filter, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	args = append(args, limit, offset)
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE `+filter+
		` ORDER BY lower(name) LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2), args...)
	items, err := collectProducts(rows, err)
	return items, total, err
}

func (s *pgStore) ListAll(ctx context.Context, businessID string) ([]Product, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE business_id = $1 ORDER BY lower(name)`, businessID)
	return collectProducts(rows, err)
}

func (s *pgStore) Insert(ctx context.Context, businessID string, in ProductInput) (Product, error) {
	if s == nil || s.pool == nil {
		return Product{}, ErrStoreUnavailable
	}
	p, err := scanProduct(s.pool.QueryRow(ctx, `INSERT INTO products (business_id, code, name, price, cost_price, margin_percent, stock, category, keywords)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING `+productColumns,
		businessID, in.Code, in.Name, in.Price, in.CostPrice, in.MarginPercent, in.Stock, in.Category, in.Keywords))
	return p, mapUnique(err)
}

func (s *pgStore) Update(ctx context.Context, businessID, id string, in ProductInput) (Product, error) {
	if s == nil || s.pool == nil {
		return Product{}, ErrStoreUnavailable
	}
	p, err := scanProduct(s.pool.QueryRow(ctx, `UPDATE products SET code = $3, name = $4, price = $5, cost_price = $6,
margin_percent = $7, stock = $8, category = $9, keywords = $10, updated_at = now()
WHERE business_id = $1 AND id = $2 RETURNING `+productColumns,
		businessID, id, in.Code, in.Name, in.Price, in.CostPrice, in.MarginPercent, in.Stock, in.Category, in.Keywords))
	return p, mapUnique(err)
}

func (s *pgStore) Delete(ctx context.Context, businessID, id string) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE business_id = $1 AND id = $2`, businessID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateCode
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func likePrefix(prefix string) string {
	return escapeLike(strings.ToLower(strings.TrimSpace(prefix))) + "%"
}
