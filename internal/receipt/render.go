package receipt

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mercadoforte/backend-caixa/internal/checkout"
	"github.com/mercadoforte/backend-caixa/internal/pricing"
	"github.com/mercadoforte/backend-caixa/internal/settings"
	"github.com/mercadoforte/backend-caixa/internal/tender"
)

var methodLabels = map[string]string{
	string(tender.MethodCash):    "Dinheiro",
	string(tender.MethodPix):     "Pix",
	string(tender.MethodCashPix): "Dinheiro + Pix",
	string(tender.MethodCredit):  "Fiado",
}

// Money formats an amount the Brazilian way: R$ 1234,50.
func Money(d decimal.Decimal) string {
	return "R$ " + strings.Replace(pricing.Round(d).StringFixed(2), ".", ",", 1)
}

// Quantity formats a quantity with a decimal comma and no trailing zeros.
func Quantity(d decimal.Decimal) string {
	return strings.Replace(d.String(), ".", ",", 1)
}

// Render lays out the receipt of a committed sale.
func Render(sale checkout.Sale, cfg settings.Settings, width int, loc *time.Location) []byte {
	if loc == nil {
		loc = time.UTC
	}
	doc := NewDocument(width)

	doc.Align(AlignCenter)
	if name := strings.TrimSpace(cfg.BusinessName); name != "" {
		doc.Bold(true).Size(SizeDouble).Text(name).Size(SizeNormal).Bold(false)
	}
	doc.Text(sale.CreatedAt.In(loc).Format("02/01/2006 15:04"))
	doc.Align(AlignLeft).Separator('-')
	doc.KeyValue("Cliente", sale.ClientName)
	if sale.Operator != "" {
		doc.KeyValue("Operador", sale.Operator)
	}
	doc.Separator('-')

	for _, item := range sale.Items {
		doc.Item(item.Name, Quantity(item.Quantity), Money(item.UnitPrice), Money(item.Total()))
	}
	doc.Separator('-')

	doc.KeyValue("Subtotal", Money(sale.Subtotal))
	if sale.Extra.IsPositive() {
		doc.KeyValue("Acréscimo", Money(sale.Extra))
	}
	if sale.FixedDiscount.IsPositive() {
		doc.KeyValue("Desconto", "-"+Money(sale.FixedDiscount))
	}
	if sale.PercentDiscount.IsPositive() {
		doc.KeyValue("Desconto %", sale.PercentDiscount.Mul(decimal.NewFromInt(100)).String()+"%")
	}
	doc.Bold(true).KeyValue("TOTAL", Money(sale.Total)).Bold(false)
	doc.Separator('-')

	doc.KeyValue("Pagamento", methodLabels[sale.Method])
	if sale.CashTendered.IsPositive() {
		doc.KeyValue("Dinheiro", Money(sale.CashTendered))
	}
	if sale.CashInserted.IsPositive() {
		doc.KeyValue("Recebido", Money(sale.CashInserted))
	}
	if sale.PixTendered.IsPositive() {
		doc.KeyValue("Pix", Money(sale.PixTendered))
	}
	if sale.CreditDue.IsPositive() {
		doc.KeyValue("Fiado", Money(sale.CreditDue))
	}
	if sale.ChangeDue.IsPositive() {
		doc.Bold(true).KeyValue("Troco", Money(sale.ChangeDue)).Bold(false)
	}

	if msg := strings.TrimSpace(cfg.ReceiptMessage); msg != "" {
		doc.Feed(1).Align(AlignCenter).Text(msg).Align(AlignLeft)
	}
	return doc.Cut().Bytes()
}
