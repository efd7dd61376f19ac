package catalog_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mercadoforte/backend-caixa/internal/cache"
	"github.com/mercadoforte/backend-caixa/internal/catalog"
	"github.com/mercadoforte/backend-caixa/internal/common"
)

var scope = common.Scope{BusinessID: "loja-1", Operator: "Ana"}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newService(t *testing.T, store catalog.Store) *catalog.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc, err := catalog.NewService(catalog.ServiceConfig{Store: store, Cache: cache.New(client, time.Minute), DefaultLimit: 20, MaxLimit: 50})
	require.NoError(t, err)
	return svc
}

func seedGrocery(store *fakeStore) {
	store.seed("loja-1", catalog.ProductInput{Code: "789100", Name: "Arroz Branco 5kg", Price: d("25.90"), Stock: d("10"), Keywords: catalog.Keywords("Arroz Branco 5kg")})
	store.seed("loja-1", catalog.ProductInput{Code: "789200", Name: "Feijão Carioca", Price: d("8.49"), Stock: d("3"), Keywords: catalog.Keywords("Feijão Carioca", "arroz")})
	store.seed("loja-1", catalog.ProductInput{Code: "789300", Name: "Arroz Integral", Price: d("9.99"), Stock: d("0"), Keywords: catalog.Keywords("Arroz Integral")})
	store.seed("loja-2", catalog.ProductInput{Code: "789100", Name: "Arroz Outra Loja", Price: d("1"), Stock: d("1")})
}

func TestKeywords(t *testing.T) {
	require.Equal(t, []string{"5kg", "arroz", "branco", "tipo1"}, catalog.Keywords("Arroz Branco 5kg", "TIPO1", "arroz"))
	require.Equal(t, []string{"d'água", "pão"}, catalog.Keywords("Pão D'Água"))
}

func TestSuggestedPrice(t *testing.T) {
	require.Equal(t, "13", catalog.SuggestedPrice(d("10"), d("30")).String())
	require.Equal(t, "3.33", catalog.SuggestedPrice(d("2.5"), d("33.3")).String())
}

func TestLookupByCodeCachesAndScopes(t *testing.T) {
	store := newFakeStore()
	seedGrocery(store)
	svc := newService(t, store)
	ctx := context.Background()

	p, err := svc.LookupByCode(ctx, scope, " 789100 ")
	require.NoError(t, err)
	require.Equal(t, "Arroz Branco 5kg", p.Name)

	_, err = svc.LookupByCode(ctx, scope, "789100")
	require.NoError(t, err)
	require.Equal(t, 1, store.calls["GetByCode"])

	other, err := svc.LookupByCode(ctx, common.Scope{BusinessID: "loja-2"}, "789100")
	require.NoError(t, err)
	require.Equal(t, "Arroz Outra Loja", other.Name)

	_, err = svc.LookupByCode(ctx, scope, "000")
	require.True(t, common.HasCode(err, common.CodeNotFound))

	_, err = svc.LookupByCode(ctx, common.Scope{}, "789100")
	require.True(t, common.HasCode(err, common.CodeValidation))
}

func TestSearchUnionsNamePrefixAndKeyword(t *testing.T) {
	store := newFakeStore()
	seedGrocery(store)
	svc := newService(t, store)

	items, err := svc.Search(context.Background(), scope, "ARROZ", 0)
	require.NoError(t, err)
	names := make([]string, 0, len(items))
	for _, p := range items {
		names = append(names, p.Name)
	}
	require.Equal(t, []string{"Arroz Branco 5kg", "Arroz Integral", "Feijão Carioca"}, names)

	empty, err := svc.Search(context.Background(), scope, "macarrão", 0)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestResolvePrecedence(t *testing.T) {
	store := newFakeStore()
	seedGrocery(store)
	svc := newService(t, store)
	ctx := context.Background()

	res, err := svc.Resolve(ctx, scope, "789200")
	require.NoError(t, err)
	require.NotNil(t, res.Exact)
	require.Equal(t, "Feijão Carioca", res.Exact.Name)
	require.Empty(t, res.Candidates)

	res, err = svc.Resolve(ctx, scope, "feij")
	require.NoError(t, err)
	require.Nil(t, res.Exact)
	require.Len(t, res.Candidates, 1)
}

func TestCreateConflictAndInvalidation(t *testing.T) {
	store := newFakeStore()
	seedGrocery(store)
	svc := newService(t, store)
	ctx := context.Background()

	items, err := svc.Search(ctx, scope, "leite", 0)
	require.NoError(t, err)
	require.Empty(t, items)

	created, err := svc.Create(ctx, scope, catalog.ProductInput{Code: "111", Name: " Leite Integral 1L ", Price: d("4.555"), Stock: d("12")})
	require.NoError(t, err)
	require.Equal(t, "Leite Integral 1L", created.Name)
	require.Equal(t, "4.56", created.Price.StringFixed(2))
	require.Equal(t, []string{"1l", "integral", "leite"}, created.Keywords)

	items, err = svc.Search(ctx, scope, "leite", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = svc.Create(ctx, scope, catalog.ProductInput{Code: "111", Name: "Outro", Price: d("1")})
	require.True(t, common.HasCode(err, common.CodeConflict))

	_, err = svc.Create(ctx, scope, catalog.ProductInput{Code: "", Name: "Sem código", Price: d("1")})
	require.True(t, common.HasCode(err, common.CodeValidation))

	_, err = svc.Create(ctx, scope, catalog.ProductInput{Code: "222", Name: "Negativo", Price: d("-1")})
	require.True(t, common.HasCode(err, common.CodeValidation))
}

func TestUpdateDeleteAndStockBalance(t *testing.T) {
	store := newFakeStore()
	seedGrocery(store)
	svc := newService(t, store)
	ctx := context.Background()

	p, err := svc.LookupByCode(ctx, scope, "789200")
	require.NoError(t, err)

	updated, err := svc.Update(ctx, scope, p.ID, catalog.ProductInput{Code: "789200", Name: "Feijão Preto", Price: d("9"), Stock: d("2")})
	require.NoError(t, err)
	require.Equal(t, "Feijão Preto", updated.Name)

	again, err := svc.LookupByCode(ctx, scope, "789200")
	require.NoError(t, err)
	require.Equal(t, "Feijão Preto", again.Name)

	balance, err := svc.StockBalance(ctx, scope)
	require.NoError(t, err)
	require.Len(t, balance.Lines, 3)
	require.Equal(t, "Arroz Branco 5kg", balance.Lines[0].Name)
	require.Equal(t, "259", balance.Lines[0].Value.String())
	require.Equal(t, "277", balance.Total.String())

	require.NoError(t, svc.Delete(ctx, scope, p.ID))
	_, err = svc.Get(ctx, scope, p.ID)
	require.True(t, common.HasCode(err, common.CodeNotFound))
	require.True(t, common.HasCode(svc.Delete(ctx, scope, "not-a-uuid"), common.CodeNotFound))
}
