package cart_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mercadoforte/backend-caixa/internal/cart"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAddItemMergesByName(t *testing.T) {
	var c cart.Cart
	rice := cart.Product{ID: "p1", Name: "Rice", Price: d("10.00")}

	require.NoError(t, c.AddItem(rice, d("1")))
	require.NoError(t, c.AddItem(rice, d("2")))

	require.Len(t, c.Items, 1)
	require.True(t, d("3").Equal(c.Items[0].Quantity))
	require.True(t, d("10").Equal(c.Items[0].UnitPrice))
	require.Equal(t, "p1", c.Items[0].ProductID)
}

func TestAddItemRejectsZeroQuantity(t *testing.T) {
	var c cart.Cart
	err := c.AddItem(cart.Product{Name: "Beans", Price: d("7")}, decimal.Zero)
	require.ErrorIs(t, err, cart.ErrInvalidQuantity)
	require.True(t, c.Empty())
}

func TestAddItemRejectsNegativeQuantity(t *testing.T) {
	var c cart.Cart
	err := c.AddItem(cart.Product{Name: "Beans", Price: d("7")}, d("-1"))
	require.ErrorIs(t, err, cart.ErrInvalidQuantity)
	require.True(t, c.Empty())
}

func TestRemoveItem(t *testing.T) {
	var c cart.Cart
	require.NoError(t, c.AddItem(cart.Product{Name: "A", Price: d("1")}, d("1")))
	require.NoError(t, c.AddItem(cart.Product{Name: "B", Price: d("2")}, d("1")))

	err := c.RemoveItem(2)
	require.True(t, errors.Is(err, cart.ErrIndexOutOfRange))
	require.ErrorIs(t, c.RemoveItem(-1), cart.ErrIndexOutOfRange)

	require.NoError(t, c.RemoveItem(0))
	require.Len(t, c.Items, 1)
	require.Equal(t, "B", c.Items[0].Name)
}

func TestSubtotalAndUnits(t *testing.T) {
	var c cart.Cart
	require.NoError(t, c.AddItem(cart.Product{Name: "Rice", Price: d("10.00")}, d("2")))
	require.NoError(t, c.AddItem(cart.Product{Name: "Cheese", Price: d("40.00")}, d("0.250")))
	require.True(t, d("30").Equal(c.Subtotal()))
	require.True(t, d("2.25").Equal(c.Units()))

	c.Clear()
	require.True(t, c.Subtotal().IsZero())
}

func TestParseToken(t *testing.T) {
	tok, err := cart.ParseToken("0.5*rice")
	require.NoError(t, err)
	require.True(t, d("0.5").Equal(tok.Quantity))
	require.Equal(t, "rice", tok.Term)

	tok, err = cart.ParseToken(" 3 * Feijão Carioca ")
	require.NoError(t, err)
	require.True(t, d("3").Equal(tok.Quantity))
	require.Equal(t, "Feijão Carioca", tok.Term)

	tok, err = cart.ParseToken("1,5*queijo")
	require.NoError(t, err)
	require.True(t, d("1.5").Equal(tok.Quantity))

	tok, err = cart.ParseToken("7891000100103")
	require.NoError(t, err)
	require.True(t, d("1").Equal(tok.Quantity))
	require.Equal(t, "7891000100103", tok.Term)
}

func TestParseTokenRejectsNonPositive(t *testing.T) {
	_, err := cart.ParseToken("0*rice")
	require.ErrorIs(t, err, cart.ErrInvalidQuantity)

	_, err = cart.ParseToken("-2*rice")
	require.ErrorIs(t, err, cart.ErrInvalidQuantity)

	_, err = cart.ParseToken("   ")
	require.Error(t, err)
}
