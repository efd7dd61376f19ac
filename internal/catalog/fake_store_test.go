package catalog_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mercadoforte/backend-caixa/internal/catalog"
)

type fakeStore struct {
	mu       sync.Mutex
	products map[string]map[string]catalog.Product
	calls    map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{products: map[string]map[string]catalog.Product{}, calls: map[string]int{}}
}

func (f *fakeStore) seed(businessID string, in catalog.ProductInput) catalog.Product {
	p, _ := f.Insert(context.Background(), businessID, in)
	f.calls = map[string]int{}
	return p
}

func (f *fakeStore) sorted(businessID string, keep func(catalog.Product) bool) []catalog.Product {
	out := make([]catalog.Product, 0)
	for _, p := range f.products[businessID] {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

func (f *fakeStore) GetByCode(_ context.Context, businessID, code string) (catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetByCode"]++
	for _, p := range f.products[businessID] {
		if p.Code == code {
			return p, nil
		}
	}
	return catalog.Product{}, catalog.ErrNotFound
}

func (f *fakeStore) Get(_ context.Context, businessID, id string) (catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[businessID][id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) SearchNamePrefix(_ context.Context, businessID, prefix string, limit int) ([]catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["SearchNamePrefix"]++
	prefix = strings.ToLower(prefix)
	out := f.sorted(businessID, func(p catalog.Product) bool { return strings.HasPrefix(strings.ToLower(p.Name), prefix) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) SearchKeyword(_ context.Context, businessID, keyword string, limit int) ([]catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keyword = strings.ToLower(keyword)
	out := f.sorted(businessID, func(p catalog.Product) bool {
		for _, k := range p.Keywords {
			if k == keyword {
				return true
			}
		}
		return false
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) List(_ context.Context, businessID, q string, limit, offset int) ([]catalog.Product, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q = strings.ToLower(q)
	all := f.sorted(businessID, func(p catalog.Product) bool { return q == "" || strings.Contains(strings.ToLower(p.Name), q) })
	total := int64(len(all))
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (f *fakeStore) ListAll(_ context.Context, businessID string) ([]catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(businessID, func(catalog.Product) bool { return true }), nil
}

func (f *fakeStore) Insert(_ context.Context, businessID string, in catalog.ProductInput) (catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products[businessID] {
		if p.Code == in.Code {
			return catalog.Product{}, catalog.ErrDuplicateCode
		}
	}
	if f.products[businessID] == nil {
		f.products[businessID] = map[string]catalog.Product{}
	}
	now := time.Now()
	p := catalog.Product{
		ID: uuid.NewString(), Code: in.Code, Name: in.Name, Price: in.Price, CostPrice: in.CostPrice,
		MarginPercent: in.MarginPercent, Stock: in.Stock, Category: in.Category, Keywords: in.Keywords,
		CreatedAt: now, UpdatedAt: now,
	}
	f.products[businessID][p.ID] = p
	return p, nil
}

func (f *fakeStore) Update(_ context.Context, businessID, id string, in catalog.ProductInput) (catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[businessID][id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	p.Code, p.Name, p.Price, p.Stock, p.Keywords = in.Code, in.Name, in.Price, in.Stock, in.Keywords
	p.UpdatedAt = time.Now()
	f.products[businessID][id] = p
	return p, nil
}

func (f *fakeStore) Delete(_ context.Context, businessID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[businessID][id]; !ok {
		return catalog.ErrNotFound
	}
	delete(f.products[businessID], id)
	return nil
}
