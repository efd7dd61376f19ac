package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/mercadoforte/backend-caixa/internal/common"
)

// Places is the fixed-point precision of every persisted or displayed amount.
const Places = 2

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       decimal.Decimal
	UnitPrice decimal.Decimal
}

// Adjustments are sale-level charges and discounts applied on top of the subtotal.
type Adjustments struct {
	Extra           decimal.Decimal `json:"extra"`
	FixedDiscount   decimal.Decimal `json:"fixedDiscount"`
	PercentDiscount decimal.Decimal `json:"percentDiscount"`
}

// Summary aggregates computed pricing components, rounded for display and persistence.
type Summary struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	Extra           decimal.Decimal `json:"extra"`
	FixedDiscount   decimal.Decimal `json:"fixedDiscount"`
	PercentDiscount decimal.Decimal `json:"percentDiscount"`
	Total           decimal.Decimal `json:"total"`
}

// Round rounds half away from zero to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Subtotal sums unit price times quantity. Intermediate values keep full precision.
func Subtotal(items []Item) decimal.Decimal {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.UnitPrice.Mul(it.Qty))
	}
	return subtotal
}

// AdjustedTotal computes ((subtotal + extra) - fixedDiscount) * (1 - percentDiscount).
// The result is not clamped; call Validate first.
func AdjustedTotal(subtotal decimal.Decimal, adj Adjustments) decimal.Decimal {
	return subtotal.Add(adj.Extra).Sub(adj.FixedDiscount).Mul(one.Sub(adj.PercentDiscount))
}

// Validate checks the adjustments against the subtotal they will be applied to.
func (a Adjustments) Validate(subtotal decimal.Decimal) error {
	fields := map[string]string{}
	if a.Extra.IsNegative() {
		fields["extra"] = "must not be negative"
	}
	if a.FixedDiscount.IsNegative() {
		fields["fixedDiscount"] = "must not be negative"
	}
	if a.PercentDiscount.IsNegative() || a.PercentDiscount.GreaterThanOrEqual(one) {
		fields["percentDiscount"] = "must be in [0, 1)"
	}
	if a.FixedDiscount.GreaterThan(subtotal.Add(a.Extra)) {
		fields["fixedDiscount"] = "exceeds subtotal plus extra"
	}
	if len(fields) > 0 {
		return common.Validation("invalid adjustments", map[string]any{"fields": fields})
	}
	return nil
}

// IsZero reports whether no adjustment is applied.
func (a Adjustments) IsZero() bool {
	return a.Extra.IsZero() && a.FixedDiscount.IsZero() && a.PercentDiscount.IsZero()
}

// PercentFromPoints converts an operator-entered percentage (10 means 10%) into a fraction.
func PercentFromPoints(points decimal.Decimal) decimal.Decimal {
	return points.Div(hundred)
}

// Compute calculates the rounded summary for the given items and adjustments.
func Compute(items []Item, adj Adjustments) Summary {
	subtotal := Subtotal(items)
	return Summary{
		Subtotal:        Round(subtotal),
		Extra:           Round(adj.Extra),
		FixedDiscount:   Round(adj.FixedDiscount),
		PercentDiscount: adj.PercentDiscount,
		Total:           Round(AdjustedTotal(subtotal, adj)),
	}
}

// Markup returns cost + cost*margin/100 rounded, the suggested sale price for a product.
func Markup(cost, marginPercent decimal.Decimal) decimal.Decimal {
	return Round(cost.Add(cost.Mul(marginPercent).Div(hundred)))
}
