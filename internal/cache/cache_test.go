package cache_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/mercadoforte/backend-caixa/internal/cache"
)

func newCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.New(client, time.Minute), mr
}

func TestCacheJSONRoundTrip(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	key := cache.ProductCode("loja-1", " 789ABC ")
	require.Equal(t, "loja-1:catalog:code:789abc", key)

	var got map[string]string
	ok, err := c.GetJSON(ctx, key, &got)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.SetJSON(ctx, key, map[string]string{"name": "Arroz"}))
	ok, err = c.GetJSON(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Arroz", got["name"])
	require.Equal(t, time.Minute, mr.TTL(key))
}

func TestCacheDeletePrefixScopedToBusiness(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.SetJSON(ctx, cache.ProductCode("loja-1", "1"), 1))
	require.NoError(t, c.SetJSON(ctx, cache.ProductSearch("loja-1", "arr"), 2))
	require.NoError(t, c.SetJSON(ctx, cache.ProductCode("loja-2", "1"), 3))

	require.NoError(t, c.DeletePrefix(ctx, cache.CatalogPrefix("loja-1")))
	require.False(t, mr.Exists(cache.ProductCode("loja-1", "1")))
	require.False(t, mr.Exists(cache.ProductSearch("loja-1", "arr")))
	require.True(t, mr.Exists(cache.ProductCode("loja-2", "1")))
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *cache.Cache
	ok, err := c.GetJSON(context.Background(), "k", new(int))
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, c.SetJSON(context.Background(), "k", 1))
	require.NoError(t, c.DeletePrefix(context.Background(), "k"))
}
