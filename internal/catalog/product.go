package catalog

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mercadoforte/backend-caixa/internal/cart"
	"github.com/mercadoforte/backend-caixa/internal/pricing"
)

// Product is a catalog entry of one business.
type Product struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	CostPrice     decimal.Decimal `json:"costPrice"`
	MarginPercent decimal.Decimal `json:"marginPercent"`
	Stock         decimal.Decimal `json:"stock"`
	Category      string          `json:"category,omitempty"`
	Keywords      []string        `json:"keywords"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// CartProduct returns the fields a cart line snapshots.
func (p Product) CartProduct() cart.Product {
	return cart.Product{ID: p.ID, Code: p.Code, Name: p.Name, Price: p.Price}
}

// ProductInput is the writable part of a product.
type ProductInput struct {
	Code          string          `json:"code" validate:"required,max=64"`
	Name          string          `json:"name" validate:"required,max=200"`
	Price         decimal.Decimal `json:"price" validate:"gte=0"`
	CostPrice     decimal.Decimal `json:"costPrice" validate:"gte=0"`
	MarginPercent decimal.Decimal `json:"marginPercent" validate:"gte=0"`
	Stock         decimal.Decimal `json:"stock" validate:"gte=0"`
	Category      string          `json:"category" validate:"max=100"`
	Keywords      []string        `json:"keywords" validate:"max=50,dive,max=64"`
}

func (in ProductInput) normalize() ProductInput {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Keywords = Keywords(in.Name, in.Keywords...)
	in.Price = pricing.Round(in.Price)
	in.CostPrice = pricing.Round(in.CostPrice)
	return in
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+('[\p{L}\p{N}_]+)?`)

// Keywords lower-cases every word of name and merges in the extra keywords,
// dropping duplicates. The result is sorted.
func Keywords(name string, extra ...string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	add := func(word string) {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			return
		}
		if _, ok := seen[word]; ok {
			return
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}
	for _, w := range wordPattern.FindAllString(name, -1) {
		add(w)
	}
	for _, w := range extra {
		add(w)
	}
	sort.Strings(out)
	return out
}

// SuggestedPrice is cost plus margin percent of cost, rounded to cents.
func SuggestedPrice(cost, marginPercent decimal.Decimal) decimal.Decimal {
	return pricing.Markup(cost, marginPercent)
}

// StockLine is one row of the stock balance.
type StockLine struct {
	ID    string          `json:"id"`
	Code  string          `json:"code"`
	Name  string          `json:"name"`
	Stock decimal.Decimal `json:"stock"`
	Price decimal.Decimal `json:"price"`
	Value decimal.Decimal `json:"value"`
}

// StockBalance values the inventory at sale price.
type StockBalance struct {
	Lines []StockLine     `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// NewStockBalance builds a balance sorted by product name.
func NewStockBalance(products []Product) StockBalance {
	lines := make([]StockLine, 0, len(products))
	total := decimal.Zero
	for _, p := range products {
		value := pricing.Round(p.Stock.Mul(p.Price))
		lines = append(lines, StockLine{ID: p.ID, Code: p.Code, Name: p.Name, Stock: p.Stock, Price: p.Price, Value: value})
		total = total.Add(value)
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return strings.ToLower(lines[i].Name) < strings.ToLower(lines[j].Name)
	})
	return StockBalance{Lines: lines, Total: total}
}
