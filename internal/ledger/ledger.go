package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mercadoforte/backend-caixa/internal/period"
)

// Client is a customer of the business with a running debt (fiado).
type Client struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone,omitempty"`
	Debt           decimal.Decimal `json:"debt"`
	TotalSpent     decimal.Decimal `json:"totalSpent"`
	LastPaymentAt  *time.Time      `json:"lastPaymentAt,omitempty"`
	LastPurchaseAt *time.Time      `json:"lastPurchaseAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// ClientInput is the writable part of a client.
type ClientInput struct {
	Name  string `json:"name" validate:"required,max=120"`
	Phone string `json:"phone" validate:"max=32"`
}

func (in ClientInput) normalize() ClientInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}

// ClientList is the client listing with the sum of all debts.
type ClientList struct {
	Items     []Client        `json:"items"`
	TotalDebt decimal.Decimal `json:"totalDebt"`
}

// Payment is a debt payment made by a client.
type Payment struct {
	ID         string          `json:"id"`
	ClientID   string          `json:"clientId"`
	ClientName string          `json:"clientName"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Note       string          `json:"note,omitempty"`
	Operator   string          `json:"operator,omitempty"`
	PaidAt     time.Time       `json:"paidAt"`
}

// PaymentInput records a payment against a client's debt.
type PaymentInput struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	Method string          `json:"method" validate:"omitempty,oneof=cash pix card"`
	Note   string          `json:"note" validate:"max=500"`
}

// PaymentList is a filtered payment listing with its total.
type PaymentList struct {
	Period period.Range    `json:"period"`
	Items  []Payment       `json:"items"`
	Total  decimal.Decimal `json:"total"`
}
