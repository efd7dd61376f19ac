package cart

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/pricing"
)

var (
	// ErrInvalidQuantity is returned for a zero or negative quantity.
	ErrInvalidQuantity = errors.New("cart: invalid quantity")
	// ErrIndexOutOfRange is returned when removing a position that does not exist.
	ErrIndexOutOfRange = errors.New("cart: index out of range")
	// ErrInvalidItem is returned for a product without a name or with a negative price.
	ErrInvalidItem = errors.New("cart: invalid item")
)

// Product is the subset of a catalog product the cart needs.
type Product struct {
	ID    string
	Code  string
	Name  string
	Price decimal.Decimal
}

// LineItem is a single cart row. Name is its identity within a cart.
type LineItem struct {
	ProductID string          `json:"productId,omitempty"`
	Code      string          `json:"code,omitempty"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// Total returns the unrounded unit price times quantity.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(li.Quantity)
}

// Cart holds at most one line per distinct name.
type Cart struct {
	Items []LineItem `json:"items"`
}

// AddItem merges qty into the line with the same name or appends a new line
// priced at product.Price. Callers default an omitted quantity to one unit.
func (c *Cart) AddItem(product Product, qty decimal.Decimal) error {
	if err := CheckQuantity(qty); err != nil {
		return err
	}
	name := strings.TrimSpace(product.Name)
	if name == "" || product.Price.IsNegative() {
		return common.ValidationWrap(ErrInvalidItem, "product must have a name and a non-negative price", nil)
	}
	for i := range c.Items {
		if c.Items[i].Name == name {
			c.Items[i].Quantity = c.Items[i].Quantity.Add(qty)
			return nil
		}
	}
	c.Items = append(c.Items, LineItem{
		ProductID: product.ID,
		Code:      product.Code,
		Name:      name,
		UnitPrice: product.Price,
		Quantity:  qty,
	})
	return nil
}

// RemoveItem deletes the line at index.
func (c *Cart) RemoveItem(index int) error {
	if index < 0 || index >= len(c.Items) {
		return common.ValidationWrap(ErrIndexOutOfRange, "item index out of range", map[string]any{"index": index, "size": len(c.Items)})
	}
	c.Items = append(c.Items[:index], c.Items[index+1:]...)
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = nil
}

// Empty reports whether the cart has no lines.
func (c Cart) Empty() bool {
	return len(c.Items) == 0
}

// Count returns the number of lines.
func (c Cart) Count() int {
	return len(c.Items)
}

// Units returns the sum of quantities across lines.
func (c Cart) Units() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Quantity)
	}
	return total
}

// PricingItems adapts the cart to the pricing engine.
func (c Cart) PricingItems() []pricing.Item {
	items := make([]pricing.Item, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, pricing.Item{Qty: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return items
}

// Subtotal is the unrounded cart subtotal.
func (c Cart) Subtotal() decimal.Decimal {
	return pricing.Subtotal(c.PricingItems())
}

// CheckQuantity rejects quantities that are not greater than zero.
func CheckQuantity(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return invalidQuantity(qty)
	}
	return nil
}

func invalidQuantity(qty decimal.Decimal) error {
	return common.ValidationWrap(ErrInvalidQuantity, "quantity must be greater than zero", map[string]any{"quantity": qty.String()})
}
