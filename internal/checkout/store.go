package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mercadoforte/backend-caixa/internal/cart"
)

var (
	// ErrSaleNotFound is returned when no sale matches.
	ErrSaleNotFound = errors.New("checkout: sale not found")
	// ErrDuplicateCommit is returned when a sale with the same commit key exists.
	ErrDuplicateCommit = errors.New("checkout: commit key already used")
	// ErrStoreUnavailable indicates the database pool is not configured.
	ErrStoreUnavailable = errors.New("checkout: store unavailable")
)

// Tx is the set of writes a commit performs inside one transaction.
type Tx interface {
	ResolveClient(ctx context.Context, businessID, name string) (ClientRef, error)
	ApplyToClient(ctx context.Context, businessID, clientID string, credit, total decimal.Decimal, phone string) error
	InsertSale(ctx context.Context, sale *Sale) error
	DecrementStock(ctx context.Context, businessID string, item cart.LineItem) (bool, error)
}

// Store runs commits and reads back committed sales.
type Store interface {
	FindByCommitKey(ctx context.Context, businessID, key string) (Sale, error)
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// PGStore is the PostgreSQL implementation of Store. It also serves the
// sales history reads.
type PGStore struct {
	pool *pgxpool.Pool
}

// SaleColumns lists the columns ScanSale expects, in order.
const SaleColumns = `id, business_id, commit_key, client_id, client_name, operator, operator_id, method, items,
subtotal, extra, fixed_discount, percent_discount, total, cash_tendered, pix_tendered, cash_inserted,
credit_due, change_due, created_at`

// ScanSale reads one sales row selected with SaleColumns.
func ScanSale(row pgx.Row) (Sale, error) {
	var s Sale
	var items []byte
	err := row.Scan(&s.ID, &s.BusinessID, &s.CommitKey, &s.ClientID, &s.ClientName, &s.Operator, &s.OperatorID, &s.Method, &items,
		&s.Subtotal, &s.Extra, &s.FixedDiscount, &s.PercentDiscount, &s.Total, &s.CashTendered, &s.PixTendered, &s.CashInserted,
		&s.CreditDue, &s.ChangeDue, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	if err != nil {
		return Sale{}, err
	}
	if err := json.Unmarshal(items, &s.Items); err != nil {
		return Sale{}, fmt.Errorf("decode sale items: %w", err)
	}
	return s, nil
}

// FindByCommitKey returns the sale already written for key.
func (p *PGStore) FindByCommitKey(ctx context.Context, businessID, key string) (Sale, error) {
	if p == nil || p.pool == nil {
		return Sale{}, ErrStoreUnavailable
	}
	return ScanSale(p.pool.QueryRow(ctx, `SELECT `+SaleColumns+` FROM sales WHERE business_id = $1 AND commit_key = $2`, businessID, key))
}

// GetSale returns one sale by id.
func (p *PGStore) GetSale(ctx context.Context, businessID, id string) (Sale, error) {
	if p == nil || p.pool == nil {
		return Sale{}, ErrStoreUnavailable
	}
	return ScanSale(p.pool.QueryRow(ctx, `SELECT `+SaleColumns+` FROM sales WHERE business_id = $1 AND id = $2`, businessID, id))
}

// WithinTx runs fn in a transaction, committing when it returns nil.
func (p *PGStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if p == nil || p.pool == nil {
		return ErrStoreUnavailable
	}
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()
	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct {
	tx pgx.Tx
}

// ResolveClient finds the client by exact name or creates it with zero
// balances. The row stays locked until the transaction ends.
func (t *pgTx) ResolveClient(ctx context.Context, businessID, name string) (ClientRef, error) {
	var ref ClientRef
	err := t.tx.QueryRow(ctx, `INSERT INTO clients (business_id, name) VALUES ($1, $2)
ON CONFLICT (business_id, name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, name, (xmax = 0) AS created`, businessID, name).Scan(&ref.ID, &ref.Name, &ref.Created)
	return ref, err
}

func (t *pgTx) ApplyToClient(ctx context.Context, businessID, clientID string, credit, total decimal.Decimal, phone string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE clients SET debt = debt + $3, total_spent = total_spent + $4,
phone = CASE WHEN $5 <> '' THEN $5 ELSE phone END, last_purchase_at = now()
WHERE business_id = $1 AND id = $2`, businessID, clientID, credit, total, phone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("client %s not updated", clientID)
	}
	return nil
}

func (t *pgTx) InsertSale(ctx context.Context, sale *Sale) error {
	items, err := json.Marshal(sale.Items)
	if err != nil {
		return fmt.Errorf("encode sale items: %w", err)
	}
	err = t.tx.QueryRow(ctx, `INSERT INTO sales (business_id, commit_key, client_id, client_name, operator, operator_id, method, items,
subtotal, extra, fixed_discount, percent_discount, total, cash_tendered, pix_tendered, cash_inserted, credit_due, change_due)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
RETURNING id, created_at`,
		sale.BusinessID, sale.CommitKey, sale.ClientID, sale.ClientName, sale.Operator, sale.OperatorID, sale.Method, items,
		sale.Subtotal, sale.Extra, sale.FixedDiscount, sale.PercentDiscount, sale.Total, sale.CashTendered, sale.PixTendered,
		sale.CashInserted, sale.CreditDue, sale.ChangeDue).Scan(&sale.ID, &sale.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateCommit
	}
	return err
}

// DecrementStock lowers stock by the line quantity with a floor at zero.
// Lines without a product id fall back to the oldest product with the same
// name. It reports whether a product row was touched.
func (t *pgTx) DecrementStock(ctx context.Context, businessID string, item cart.LineItem) (bool, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if item.ProductID != "" {
		tag, err = t.tx.Exec(ctx, `UPDATE products SET stock = GREATEST(stock - $3, 0), updated_at = now()
WHERE business_id = $1 AND id = $2`, businessID, item.ProductID, item.Quantity)
	} else {
		tag, err = t.tx.Exec(ctx, `UPDATE products SET stock = GREATEST(stock - $3, 0), updated_at = now()
WHERE id = (SELECT id FROM products WHERE business_id = $1 AND name = $2 ORDER BY created_at LIMIT 1)`,
			businessID, item.Name, item.Quantity)
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// stockOrder sorts lines so concurrent commits lock product rows in the
// same order.
func stockOrder(items []cart.LineItem) []cart.LineItem {
	out := append([]cart.LineItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].Name < out[j].Name
	})
	return out
}
