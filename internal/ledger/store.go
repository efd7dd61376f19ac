package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mercadoforte/backend-caixa/internal/period"
)

var (
	// ErrNotFound is returned when a client does not exist in the business.
	ErrNotFound = errors.New("ledger: client not found")
	// ErrDuplicateName is returned when another client already has the name.
	ErrDuplicateName = errors.New("ledger: duplicate client name")
	// ErrHasDebt is returned when deleting a client that still owes money.
	ErrHasDebt = errors.New("ledger: client has outstanding debt")
	// ErrOverpayment is returned when a payment exceeds the current debt.
	ErrOverpayment = errors.New("ledger: payment exceeds debt")
	// ErrStoreUnavailable indicates the database pool is not configured.
	ErrStoreUnavailable = errors.New("ledger: store unavailable")
)

// Store is the persistence surface of the client ledger.
type Store interface {
	List(ctx context.Context, businessID, q string) ([]Client, error)
	Suggest(ctx context.Context, businessID, prefix string, limit int) ([]Client, error)
	Get(ctx context.Context, businessID, id string) (Client, error)
	Insert(ctx context.Context, businessID string, in ClientInput) (Client, error)
	Update(ctx context.Context, businessID, id string, in ClientInput) (Client, error)
	Delete(ctx context.Context, businessID, id string) error
	RecordPayment(ctx context.Context, businessID, clientID, operator string, in PaymentInput) (Payment, Client, error)
	ListPayments(ctx context.Context, businessID string, r period.Range, clientID string) ([]Payment, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const clientColumns = `id, name, phone, debt, total_spent, last_payment_at, last_purchase_at, created_at`

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Debt, &c.TotalSpent, &c.LastPaymentAt, &c.LastPurchaseAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	return c, err
}

func collectClients(rows pgx.Rows, err error) ([]Client, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *pgStore) List(ctx context.Context, businessID, q string) ([]Client, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients
WHERE business_id = $1 AND ($2 = '' OR lower(name) LIKE '%' || lower($2) || '%')
ORDER BY lower(name)`, businessID, q)
	return collectClients(rows, err)
}

func (s *pgStore) Suggest(ctx context.Context, businessID, prefix string, limit int) ([]Client, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients
WHERE business_id = $1 AND lower(name) LIKE lower($2) || '%'
ORDER BY lower(name) LIMIT $3`, businessID, prefix, limit)
	return collectClients(rows, err)
}

func (s *pgStore) Get(ctx context.Context, businessID, id string) (Client, error) {
	if s == nil || s.pool == nil {
		return Client{}, ErrStoreUnavailable
	}
	return scanClient(s.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE business_id = $1 AND id = $2`, businessID, id))
}

func (s *pgStore) Insert(ctx context.Context, businessID string, in ClientInput) (Client, error) {
	if s == nil || s.pool == nil {
		return Client{}, ErrStoreUnavailable
	}
	c, err := scanClient(s.pool.QueryRow(ctx, `INSERT INTO clients (business_id, name, phone)
VALUES ($1, $2, $3) RETURNING `+clientColumns, businessID, in.Name, in.Phone))
	return c, mapUnique(err)
}

func (s *pgStore) Update(ctx context.Context, businessID, id string, in ClientInput) (Client, error) {
	if s == nil || s.pool == nil {
		return Client{}, ErrStoreUnavailable
	}
	c, err := scanClient(s.pool.QueryRow(ctx, `UPDATE clients SET name = $3, phone = $4
WHERE business_id = $1 AND id = $2 RETURNING `+clientColumns, businessID, id, in.Name, in.Phone))
	return c, mapUnique(err)
}

func (s *pgStore) Delete(ctx context.Context, businessID, id string) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM clients WHERE business_id = $1 AND id = $2 AND debt <= 0`, businessID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := s.Get(ctx, businessID, id); err != nil {
		return err
	}
	return ErrHasDebt
}

// RecordPayment lowers the client's debt and logs the payment in one transaction.
func (s *pgStore) RecordPayment(ctx context.Context, businessID, clientID, operator string, in PaymentInput) (Payment, Client, error) {
	if s == nil || s.pool == nil {
		return Payment{}, Client{}, ErrStoreUnavailable
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Payment{}, Client{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var debt decimal.Decimal
	if err := tx.QueryRow(ctx, `SELECT debt FROM clients WHERE business_id = $1 AND id = $2 FOR UPDATE`, businessID, clientID).Scan(&debt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, Client{}, ErrNotFound
		}
		return Payment{}, Client{}, err
	}
	if in.Amount.GreaterThan(debt) {
		return Payment{}, Client{}, ErrOverpayment
	}
	client, err := scanClient(tx.QueryRow(ctx, `UPDATE clients SET debt = debt - $3, last_payment_at = now()
WHERE business_id = $1 AND id = $2 RETURNING `+clientColumns, businessID, clientID, in.Amount))
	if err != nil {
		return Payment{}, Client{}, err
	}
	p := Payment{ClientID: client.ID, ClientName: client.Name, Amount: in.Amount, Method: in.Method, Note: in.Note, Operator: operator}
	if err := tx.QueryRow(ctx, `INSERT INTO client_payments (business_id, client_id, client_name, amount, method, note, operator)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, paid_at`,
		businessID, client.ID, client.Name, in.Amount, in.Method, in.Note, operator).Scan(&p.ID, &p.PaidAt); err != nil {
		return Payment{}, Client{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Payment{}, Client{}, err
	}
	return p, client, nil
}

func (s *pgStore) ListPayments(ctx context.Context, businessID string, r period.Range, clientID string) ([]Payment, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT id, client_id, client_name, amount, method, note, operator, paid_at
FROM client_payments
WHERE business_id = $1 AND paid_at >= $2 AND paid_at < $3 AND ($4 = '' OR client_id::text = $4)
ORDER BY paid_at DESC`, businessID, r.From, r.To, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Payment, 0)
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.ClientID, &p.ClientName, &p.Amount, &p.Method, &p.Note, &p.Operator, &p.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateName
	}
	return err
}
