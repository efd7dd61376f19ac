package events

import "github.com/shopspring/decimal"

// Topic constants for domain events emitted by the till and back office.
const (
	TopicSaleCommitted   = "sale.committed"
	TopicSaleDeleted     = "sale.deleted"
	TopicPaymentRecorded = "client.payment_recorded"
)

// SaleCommitted is the payload of TopicSaleCommitted.
type SaleCommitted struct {
	SaleID       string          `json:"saleId"`
	ClientID     string          `json:"clientId"`
	ClientName   string          `json:"clientName"`
	Method       string          `json:"method"`
	Total        decimal.Decimal `json:"total"`
	CreditDue    decimal.Decimal `json:"creditDue"`
	Operator     string          `json:"operator"`
	PrintReceipt bool            `json:"printReceipt"`
}

// SaleDeleted is the payload of TopicSaleDeleted.
type SaleDeleted struct {
	SaleID   string `json:"saleId"`
	Operator string `json:"operator"`
}

// PaymentRecorded is the payload of TopicPaymentRecorded.
type PaymentRecorded struct {
	PaymentID     string          `json:"paymentId"`
	ClientID      string          `json:"clientId"`
	Amount        decimal.Decimal `json:"amount"`
	RemainingDebt decimal.Decimal `json:"remainingDebt"`
}
