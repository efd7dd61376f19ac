package expense

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/period"
)

const dateLayout = "2006-01-02"

var (
	// ErrNotFound is returned when an expense does not exist in the business.
	ErrNotFound = errors.New("expense: not found")
	// ErrStoreUnavailable indicates the database pool is not configured.
	ErrStoreUnavailable = errors.New("expense: store unavailable")
)

// Expense is money spent by the business, such as a supplier invoice.
type Expense struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Amount    decimal.Decimal `json:"amount"`
	SpentOn   time.Time       `json:"spentOn"`
	Operator  string          `json:"operator,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Input is the payload for creating an expense. SpentOn is a YYYY-MM-DD date.
type Input struct {
	Title   string          `json:"title" validate:"required,max=200"`
	Amount  decimal.Decimal `json:"amount" validate:"gt=0"`
	SpentOn string          `json:"spentOn" validate:"required,datetime=2006-01-02"`
}

// List is a filtered expense listing with its total.
type List struct {
	Period period.Range    `json:"period"`
	Items  []Expense       `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

// Store persists expenses.
type Store interface {
	Insert(ctx context.Context, businessID, operator string, title string, amount decimal.Decimal, spentOn time.Time) (Expense, error)
	Delete(ctx context.Context, businessID, id string) error
	List(ctx context.Context, businessID string, from, to time.Time) ([]Expense, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

func (s *pgStore) Insert(ctx context.Context, businessID, operator string, title string, amount decimal.Decimal, spentOn time.Time) (Expense, error) {
	if s == nil || s.pool == nil {
		return Expense{}, ErrStoreUnavailable
	}
	e := Expense{Title: title, Amount: amount, SpentOn: spentOn, Operator: operator}
	err := s.pool.QueryRow(ctx, `INSERT INTO expenses (business_id, title, amount, spent_on, operator)
VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`, businessID, title, amount, spentOn, operator).Scan(&e.ID, &e.CreatedAt)
	return e, err
}

func (s *pgStore) Delete(ctx context.Context, businessID, id string) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM expenses WHERE business_id = $1 AND id = $2`, businessID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) List(ctx context.Context, businessID string, from, to time.Time) ([]Expense, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT id, title, amount, spent_on, operator, created_at FROM expenses
WHERE business_id = $1 AND spent_on >= $2::date AND spent_on < $3::date
ORDER BY spent_on DESC, created_at DESC`, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Expense, 0)
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.Title, &e.Amount, &e.SpentOn, &e.Operator, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Service records and lists expenses.
type Service struct {
	Store    Store
	Calendar period.Calendar
}

// Create records an expense.
func (s *Service) Create(ctx context.Context, scope common.Scope, in Input) (Expense, error) {
	if err := scope.Require(); err != nil {
		return Expense{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.SpentOn = strings.TrimSpace(in.SpentOn)
	if err := common.ValidateStruct(in); err != nil {
		return Expense{}, err
	}
	loc := s.Calendar.Location
	if loc == nil {
		loc = time.UTC
	}
	spentOn, err := time.ParseInLocation(dateLayout, in.SpentOn, loc)
	if err != nil {
		return Expense{}, common.Validation("spentOn must be a date in YYYY-MM-DD format", nil)
	}
	e, err := s.Store.Insert(ctx, scope.BusinessID, scope.Operator, in.Title, in.Amount.Round(2), spentOn)
	if err != nil {
		return Expense{}, common.Persistence("create expense", err)
	}
	return e, nil
}

// Delete removes an expense.
func (s *Service) Delete(ctx context.Context, scope common.Scope, id string) error {
	if err := scope.Require(); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return common.NotFound("expense")
	}
	if err := s.Store.Delete(ctx, scope.BusinessID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return common.NotFound("expense")
		}
		return common.Persistence("delete expense", err)
	}
	return nil
}

// List returns the expenses whose date falls inside the window.
func (s *Service) List(ctx context.Context, scope common.Scope, r period.Range) (List, error) {
	if err := scope.Require(); err != nil {
		return List{}, err
	}
	items, err := s.Store.List(ctx, scope.BusinessID, r.From, r.To)
	if err != nil {
		return List{}, common.Persistence("list expenses", err)
	}
	total := decimal.Zero
	for _, e := range items {
		total = total.Add(e.Amount)
	}
	return List{Period: r, Items: items, Total: total}, nil
}
