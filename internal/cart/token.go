package cart

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mercadoforte/backend-caixa/internal/common"
)

var multiplierPattern = regexp.MustCompile(`^(-?\d+(?:[.,]\d+)?)\s*\*\s*(.+)$`)

// Token is a parsed search input: "0.5*rice" yields quantity 0.5 and term "rice".
type Token struct {
	Quantity decimal.Decimal
	Term     string
}

// ParseToken splits the optional "<number>*" quantity prefix from a search term.
// Input without the prefix means one unit.
func ParseToken(input string) (Token, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Token{}, common.Validation("search term is required", nil)
	}
	m := multiplierPattern.FindStringSubmatch(input)
	if m == nil {
		return Token{Quantity: decimal.NewFromInt(1), Term: input}, nil
	}
	qty, err := common.ParseDecimal(m[1])
	if err != nil {
		return Token{}, common.ValidationWrap(ErrInvalidQuantity, "quantity is not a number", map[string]any{"quantity": m[1]})
	}
	if !qty.IsPositive() {
		return Token{}, invalidQuantity(qty)
	}
	term := strings.TrimSpace(m[2])
	if term == "" {
		return Token{}, common.Validation("search term is required", nil)
	}
	return Token{Quantity: qty, Term: term}, nil
}
