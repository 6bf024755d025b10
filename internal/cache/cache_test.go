package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webshop-service/internal/entity"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestProductCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	c := NewProductCache(rdb)

	_, err := c.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrMiss)

	product := &entity.Product{ID: 1, Name: "Lamp", Price: decimal.RequireFromString("19.99"), Quantity: 3}
	require.NoError(t, c.Set(ctx, product, 0))
	assert.Equal(t, ProductCacheTTL, mr.TTL("product:1"))

	got, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", got.Name)
	assert.True(t, product.Price.Equal(got.Price))

	require.NoError(t, c.Invalidate(ctx, 1, 2))
	_, err = c.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestProductCacheDropsFillAfterInvalidation(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	c := NewProductCache(rdb)
	product := &entity.Product{ID: 4, Name: "Lamp", Price: decimal.NewFromInt(10), Quantity: 5}

	version, err := c.Version(ctx, 4)
	require.NoError(t, err)
	assert.Zero(t, version)

	// stock changes between the database read and the fill
	require.NoError(t, c.Invalidate(ctx, 4))
	assert.ErrorIs(t, c.Set(ctx, product, version), ErrStale)
	assert.False(t, mr.Exists("product:4"))

	version, err = c.Version(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	product.Quantity = 2
	require.NoError(t, c.Set(ctx, product, version))

	got, err := c.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Quantity)
}

func TestIdempotencyGuard(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	g := NewIdempotencyGuard(rdb)

	ok, err := g.Claim(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, IdempotencyTTL, mr.TTL("idempotent-key:abc"))

	ok, err = g.Claim(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, g.Release(ctx, "abc"))
	ok, err = g.Claim(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
}
