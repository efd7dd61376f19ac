package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mercadoforte/backend-caixa/internal/cache"
	"github.com/mercadoforte/backend-caixa/internal/common"
)

// Service orchestrates catalog queries, lookups and caching.
type Service struct {
	store        Store
	cache        *cache.Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *cache.Cache
	DefaultLimit int
	MaxLimit     int
}

// ListResult contains a page of products and the total match count.
type ListResult struct {
	Items   []Product
	Total   int64
	Page    int
	PerPage int
}

// Resolution is the outcome of resolving a typed term against the catalog.
// Exact is set when the term was a product code; otherwise Candidates holds
// the search matches, possibly empty.
type Resolution struct {
	Exact      *Product  `json:"exact,omitempty"`
	Candidates []Product `json:"candidates"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{store: cfg.Store, cache: cfg.Cache, defaultLimit: defaultLimit, maxLimit: maxLimit}, nil
}

// LookupByCode returns the product with exactly this code.
func (s *Service) LookupByCode(ctx context.Context, scope common.Scope, code string) (Product, error) {
	if err := scope.Require(); err != nil {
		return Product{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return Product{}, common.Validation("code is required", nil)
	}
	key := cache.ProductCode(scope.BusinessID, code)
	var cached Product
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	p, err := s.store.GetByCode(ctx, scope.BusinessID, code)
	if err != nil {
		return Product{}, mapStoreError("lookup product", err)
	}
	_ = s.cache.SetJSON(ctx, key, p)
	return p, nil
}

// Search returns products whose name starts with term (case-insensitive)
// followed by products carrying term as a keyword. Each product appears once.
// No match is an empty slice, not an error.
func (s *Service) Search(ctx context.Context, scope common.Scope, term string, limit int) ([]Product, error) {
	if err := scope.Require(); err != nil {
		return nil, err
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return []Product{}, nil
	}
	limit = s.clampLimit(limit)
	key := cache.ProductSearch(scope.BusinessID, term) + fmt.Sprintf(":%d", limit)
	var cached []Product
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	byName, err := s.store.SearchNamePrefix(ctx, scope.BusinessID, term, limit)
	if err != nil {
		return nil, common.Persistence("search products", err)
	}
	byKeyword, err := s.store.SearchKeyword(ctx, scope.BusinessID, term, limit)
	if err != nil {
		return nil, common.Persistence("search products", err)
	}
	out := make([]Product, 0, len(byName)+len(byKeyword))
	seen := make(map[string]struct{}, cap(out))
	for _, group := range [][]Product{byName, byKeyword} {
		for _, p := range group {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	_ = s.cache.SetJSON(ctx, key, out)
	return out, nil
}

// Resolve applies the lookup precedence used at the till: an exact code
// match wins, otherwise the search candidates are returned.
func (s *Service) Resolve(ctx context.Context, scope common.Scope, term string) (Resolution, error) {
	p, err := s.LookupByCode(ctx, scope, term)
	switch {
	case err == nil:
		return Resolution{Exact: &p, Candidates: []Product{}}, nil
	case !common.HasCode(err, common.CodeNotFound):
		return Resolution{}, err
	}
	candidates, err := s.Search(ctx, scope, term, s.defaultLimit)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Candidates: candidates}, nil
}

// Get returns a product by id.
func (s *Service) Get(ctx context.Context, scope common.Scope, id string) (Product, error) {
	if err := scope.Require(); err != nil {
		return Product{}, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return Product{}, common.NotFound("product")
	}
	p, err := s.store.Get(ctx, scope.BusinessID, id)
	if err != nil {
		return Product{}, mapStoreError("get product", err)
	}
	return p, nil
}

// List returns a page of products, optionally filtered by name or code.
func (s *Service) List(ctx context.Context, scope common.Scope, q string, page, perPage int) (ListResult, error) {
	if err := scope.Require(); err != nil {
		return ListResult{}, err
	}
	if page < 1 {
		page = 1
	}
	perPage = s.clampLimit(perPage)
	items, total, err := s.store.List(ctx, scope.BusinessID, q, perPage, common.Offset(page, perPage))
	if err != nil {
		return ListResult{}, common.Persistence("list products", err)
	}
	return ListResult{Items: items, Total: total, Page: page, PerPage: perPage}, nil
}

// Create adds a product. Codes are unique per business.
func (s *Service) Create(ctx context.Context, scope common.Scope, in ProductInput) (Product, error) {
	if err := scope.Require(); err != nil {
		return Product{}, err
	}
	in = in.normalize()
	if err := common.ValidateStruct(in); err != nil {
		return Product{}, err
	}
	p, err := s.store.Insert(ctx, scope.BusinessID, in)
	if err != nil {
		return Product{}, mapStoreError("create product", err)
	}
	s.Invalidate(ctx, scope.BusinessID)
	zerolog.Ctx(ctx).Info().Str("product_id", p.ID).Str("code", p.Code).Msg("product created")
	return p, nil
}

// Update replaces the writable fields of a product.
func (s *Service) Update(ctx context.Context, scope common.Scope, id string, in ProductInput) (Product, error) {
	if err := scope.Require(); err != nil {
		return Product{}, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return Product{}, common.NotFound("product")
	}
	in = in.normalize()
	if err := common.ValidateStruct(in); err != nil {
		return Product{}, err
	}
	p, err := s.store.Update(ctx, scope.BusinessID, id, in)
	if err != nil {
		return Product{}, mapStoreError("update product", err)
	}
	s.Invalidate(ctx, scope.BusinessID)
	return p, nil
}

// Delete removes a product. Past sales keep their snapshot.
func (s *Service) Delete(ctx context.Context, scope common.Scope, id string) error {
	if err := scope.Require(); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return common.NotFound("product")
	}
	if err := s.store.Delete(ctx, scope.BusinessID, id); err != nil {
		return mapStoreError("delete product", err)
	}
	s.Invalidate(ctx, scope.BusinessID)
	return nil
}

// StockBalance values every product's stock at its sale price.
func (s *Service) StockBalance(ctx context.Context, scope common.Scope) (StockBalance, error) {
	if err := scope.Require(); err != nil {
		return StockBalance{}, err
	}
	products, err := s.store.ListAll(ctx, scope.BusinessID)
	if err != nil {
		return StockBalance{}, common.Persistence("stock balance", err)
	}
	return NewStockBalance(products), nil
}

// Invalidate drops every cached lookup of the business. Stock changes after a
// sale go through here too.
func (s *Service) Invalidate(ctx context.Context, businessID string) {
	if err := s.cache.DeletePrefix(ctx, cache.CatalogPrefix(businessID)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("business_id", businessID).Msg("catalog cache invalidation failed")
	}
}

func (s *Service) clampLimit(limit int) int {
	if limit < 1 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	return limit
}

func mapStoreError(step string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound("product")
	case errors.Is(err, ErrDuplicateCode):
		return common.Conflict(common.CodeConflict, "product code already exists")
	default:
		return common.Persistence(step, err)
	}
}
