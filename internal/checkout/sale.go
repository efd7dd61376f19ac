package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mercadoforte/backend-caixa/internal/cart"
)

// Sale is the immutable record written once per committed sale.
type Sale struct {
	ID              string          `json:"id"`
	BusinessID      string          `json:"businessId"`
	CommitKey       string          `json:"commitKey"`
	ClientID        string          `json:"clientId"`
	ClientName      string          `json:"clientName"`
	Operator        string          `json:"operator"`
	OperatorID      string          `json:"operatorId,omitempty"`
	Method          string          `json:"method"`
	Items           []cart.LineItem `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Extra           decimal.Decimal `json:"extra"`
	FixedDiscount   decimal.Decimal `json:"fixedDiscount"`
	PercentDiscount decimal.Decimal `json:"percentDiscount"`
	Total           decimal.Decimal `json:"total"`
	CashTendered    decimal.Decimal `json:"cashTendered"`
	PixTendered     decimal.Decimal `json:"pixTendered"`
	CashInserted    decimal.Decimal `json:"cashInserted"`
	CreditDue       decimal.Decimal `json:"creditDue"`
	ChangeDue       decimal.Decimal `json:"changeDue"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// ClientRef identifies the client a sale is booked to.
type ClientRef struct {
	ID      string
	Name    string
	Created bool
}
