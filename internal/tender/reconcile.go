package tender

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/pricing"
)

// Method is the payment channel combination chosen for a sale.
type Method string

const (
	MethodCash    Method = "cash"
	MethodPix     Method = "pix"
	MethodCashPix Method = "cash_pix"
	MethodCredit  Method = "credit"
)

var (
	// ErrUnderpaid is returned when payment plus credit does not cover the total.
	ErrUnderpaid = errors.New("tender: sale not fully accounted for")
	// ErrOverpaid is returned when cash and Pix together exceed the total.
	ErrOverpaid = errors.New("tender: cash and pix exceed the total")
	// ErrChangeWithCredit is returned when change and credit are both owed.
	ErrChangeWithCredit = errors.New("tender: change and credit are mutually exclusive")
	// ErrCreditDisabled is returned when the business does not extend credit.
	ErrCreditDisabled = errors.New("tender: credit sales are disabled")
	// ErrInsufficientCash is returned when less cash was inserted than tendered.
	ErrInsufficientCash = errors.New("tender: cash inserted is less than cash tendered")
	// ErrInvalidMethod is returned for an unknown method name.
	ErrInvalidMethod = errors.New("tender: invalid method")
)

// Epsilon is the tolerance of the submission guard.
var Epsilon = decimal.RequireFromString("0.001")

// ParseMethod validates a method name.
func ParseMethod(value string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(value)))
	switch m {
	case MethodCash, MethodPix, MethodCashPix, MethodCredit:
		return m, nil
	}
	return "", common.ValidationWrap(ErrInvalidMethod, "payment method must be one of cash, pix, cash_pix, credit", map[string]any{"method": value})
}

// UsesCash reports whether physical cash is part of the method.
func (m Method) UsesCash() bool { return m == MethodCash || m == MethodCashPix }

// UsesPix reports whether Pix is part of the method.
func (m Method) UsesPix() bool { return m == MethodPix || m == MethodCashPix }

// Inputs are the operator-entered tender amounts.
type Inputs struct {
	CashTendered decimal.Decimal `json:"cashTendered"`
	PixTendered  decimal.Decimal `json:"pixTendered"`
	CashInserted decimal.Decimal `json:"cashInserted"`
}

// Validate rejects negative amounts.
func (in Inputs) Validate() error {
	fields := map[string]string{}
	if in.CashTendered.IsNegative() {
		fields["cashTendered"] = "must not be negative"
	}
	if in.PixTendered.IsNegative() {
		fields["pixTendered"] = "must not be negative"
	}
	if in.CashInserted.IsNegative() {
		fields["cashInserted"] = "must not be negative"
	}
	if len(fields) > 0 {
		return common.Validation("invalid tender amounts", map[string]any{"fields": fields})
	}
	return nil
}

// Result is the derived tender breakdown. Credit and change are never set directly.
type Result struct {
	Total        decimal.Decimal `json:"total"`
	Method       Method          `json:"method,omitempty"`
	CashTendered decimal.Decimal `json:"cashTendered"`
	PixTendered  decimal.Decimal `json:"pixTendered"`
	CashInserted decimal.Decimal `json:"cashInserted"`
	CreditDue    decimal.Decimal `json:"creditDue"`
	ChangeDue    decimal.Decimal `json:"changeDue"`
}

// Paid is the amount settled through cash and Pix.
func (r Result) Paid() decimal.Decimal {
	return r.CashTendered.Add(r.PixTendered)
}

// Reconcile derives credit and change from the total, method and tenders.
// Channels not covered by the method are ignored. The computation is pure.
func Reconcile(total decimal.Decimal, method Method, in Inputs) Result {
	total = pricing.Round(total)
	if total.IsNegative() {
		total = decimal.Zero
	}
	cash := pricing.Round(nonNegative(in.CashTendered))
	pix := pricing.Round(nonNegative(in.PixTendered))
	inserted := pricing.Round(nonNegative(in.CashInserted))

	switch method {
	case MethodCredit:
		return Result{Total: total, Method: method, CashTendered: decimal.Zero, PixTendered: decimal.Zero, CashInserted: decimal.Zero, CreditDue: total, ChangeDue: decimal.Zero}
	case MethodCash:
		pix = decimal.Zero
	case MethodPix:
		cash = decimal.Zero
		inserted = decimal.Zero
	}

	credit := clamp(total.Sub(cash).Sub(pix), decimal.Zero, total)

	change := decimal.Zero
	if method.UsesCash() && cash.IsPositive() {
		change = nonNegative(inserted.Sub(cash))
	}

	return Result{
		Total:        total,
		Method:       method,
		CashTendered: cash,
		PixTendered:  pix,
		CashInserted: inserted,
		CreditDue:    credit,
		ChangeDue:    change,
	}
}

// CheckSubmission is the guard that must pass before a sale may be committed.
func CheckSubmission(r Result, allowCredit bool) error {
	covered := r.CashTendered.Add(r.PixTendered).Add(r.CreditDue)
	if covered.LessThan(r.Total.Sub(Epsilon)) {
		return common.ValidationWrap(ErrUnderpaid, "payment and credit do not cover the total", map[string]any{
			"total":   r.Total.StringFixed(2),
			"covered": covered.StringFixed(2),
		})
	}
	if r.Paid().GreaterThan(r.Total.Add(Epsilon)) {
		return common.ValidationWrap(ErrOverpaid, "cash and pix together exceed the total; give change from cash inserted instead", map[string]any{
			"total": r.Total.StringFixed(2),
			"paid":  r.Paid().StringFixed(2),
		})
	}
	if r.ChangeDue.IsPositive() && r.CreditDue.IsPositive() {
		return common.ValidationWrap(ErrChangeWithCredit, "cannot return change while leaving a balance on credit", map[string]any{
			"changeDue": r.ChangeDue.StringFixed(2),
			"creditDue": r.CreditDue.StringFixed(2),
		})
	}
	if r.CreditDue.IsPositive() && !allowCredit {
		return common.ValidationWrap(ErrCreditDisabled, "credit sales are disabled for this business", nil)
	}
	if r.Method.UsesCash() && r.CashInserted.IsPositive() && r.CashInserted.LessThan(r.CashTendered) {
		return common.ValidationWrap(ErrInsufficientCash, "cash inserted is less than the cash amount", map[string]any{
			"cashTendered": r.CashTendered.StringFixed(2),
			"cashInserted": r.CashInserted.StringFixed(2),
		})
	}
	return nil
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// String implements fmt.Stringer for logs.
func (r Result) String() string {
	return fmt.Sprintf("total=%s cash=%s pix=%s credit=%s change=%s", r.Total.StringFixed(2), r.CashTendered.StringFixed(2), r.PixTendered.StringFixed(2), r.CreditDue.StringFixed(2), r.ChangeDue.StringFixed(2))
}
