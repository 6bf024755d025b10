package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webshop-service/internal/cache"
	"webshop-service/internal/entity"
	"webshop-service/internal/repository"
)

func TestCreateProductStartsPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.products.CreateProduct(ctx, &entity.Product{
		Name: "Lamp", Price: decimal.RequireFromString("19.990"), Quantity: 4,
		Status: entity.ProductStatusApproved, SellerID: 2,
	})
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, entity.ProductStatusPending, p.Status)
	assert.False(t, p.DatePosted.IsZero())
	assert.True(t, decimal.RequireFromString("19.99").Equal(p.Price))
}

func TestCreateProductValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cases := map[string]*entity.Product{
		"blank name":        {Name: " ", Price: decimal.NewFromInt(1)},
		"negative price":    {Name: "Lamp", Price: decimal.NewFromInt(-1)},
		"negative quantity": {Name: "Lamp", Price: decimal.NewFromInt(1), Quantity: -2},
		"sub-cent price":    {Name: "Lamp", Price: decimal.RequireFromString("19.999")},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.products.CreateProduct(ctx, p)
			assert.ErrorIs(t, err, ErrInvalidProduct)
		})
	}
}

func TestUpdateProductMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.products.UpdateProduct(ctx, 404, &entity.Product{Name: "Lamp", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = f.products.UpdateProductStatus(ctx, 404, entity.ProductStatusApproved)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, f.products.DeleteProduct(ctx, 404), repository.ErrNotFound)
}

func TestUpdateProductStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Lamp", "10", 1)

	_, err := f.products.UpdateProductStatus(ctx, p.ID, entity.ProductStatus("archived"))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	updated, err := f.products.UpdateProductStatus(ctx, p.ID, entity.ProductStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, entity.ProductStatusApproved, updated.Status)
}

func TestDeleteProductReferencedByOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Lamp", "10", 5)
	f.add(t, 1, p.ID, 1)
	_, err := f.orders.CreateOrderFromCart(ctx, 1, customer, "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.products.DeleteProduct(ctx, p.ID), ErrProductInUse)

	_, err = f.products.GetProduct(ctx, p.ID)
	assert.NoError(t, err)
}

func TestDeleteProductRemovesCartLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Lamp", "10", 5)
	f.add(t, 1, p.ID, 1)

	require.NoError(t, f.products.DeleteProduct(ctx, p.ID))

	cart, err := f.carts.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestGetProductReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	products := NewProductService(f.store, cache.NewProductCache(rdb))

	p := f.product(t, "Lamp", "10", 5)
	_, err := products.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists("product:1"))

	p.Name = "Desk lamp"
	_, err = products.UpdateProduct(ctx, p.ID, p)
	require.NoError(t, err)
	assert.False(t, mr.Exists("product:1"))

	got, err := products.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Desk lamp", got.Name)

	mr.Close()
	got, err = products.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Desk lamp", got.Name)

	_, err = products.GetProduct(ctx, 404)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetProductDropsFillRacingCheckout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	productCache := cache.NewProductCache(rdb)

	p := f.product(t, "Lamp", "10", 5)
	f.add(t, 1, p.ID, 3)
	orders := NewOrderService(f.store, nil, nil, productCache, nil, false)

	raced := false
	store := &racingStore{Store: f.store, onRead: func() {
		if raced {
			return
		}
		raced = true
		_, err := orders.CreateOrderFromCart(ctx, 1, customer, "")
		require.NoError(t, err)
	}}
	products := NewProductService(store, productCache)

	stale, err := products.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stale.Quantity)
	assert.False(t, mr.Exists("product:1"))

	fresh, err := products.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Quantity)
	assert.True(t, mr.Exists("product:1"))
}

func TestWarmCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	products := NewProductService(f.store, cache.NewProductCache(rdb))

	f.product(t, "Lamp", "10", 5)
	f.product(t, "Desk", "50", 1)

	require.NoError(t, products.WarmCache(ctx))
	assert.True(t, mr.Exists("product:1"))
	assert.True(t, mr.Exists("product:2"))

	require.NoError(t, f.products.WarmCache(ctx))
}
