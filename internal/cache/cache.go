package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"webshop-service/internal/entity"
)

const (
	ProductCacheTTL = 10 * time.Minute
	IdempotencyTTL  = 24 * time.Hour
)

var (
	// ErrMiss is returned by ProductCache.Get when the product is not cached.
	ErrMiss = errors.New("cache miss")
	// ErrStale is returned by ProductCache.Set when the product was invalidated
	// after the version passed to Set was read.
	ErrStale = errors.New("cached product invalidated concurrently")
)

// ProductCache is a cache-aside store for products. Every invalidation bumps a
// per-product version and a fill only lands while the version it started from
// is current. Version keys have no expiry.
type ProductCache struct {
	rdb *redis.Client
}

func NewProductCache(rdb *redis.Client) *ProductCache {
	return &ProductCache{rdb: rdb}
}

func productKey(id int) string {
	return fmt.Sprintf("product:%d", id)
}

func versionKey(id int) string {
	return fmt.Sprintf("product-version:%d", id)
}

func (c *ProductCache) Get(ctx context.Context, id int) (*entity.Product, error) {
	data, err := c.rdb.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}

	var product entity.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// Version returns the invalidation counter of product id. Read it before
// loading the product from the database and hand it to Set.
func (c *ProductCache) Version(ctx context.Context, id int) (int64, error) {
	version, err := c.rdb.Get(ctx, versionKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return version, err
}

// Set caches product unless it was invalidated since version was read.
func (c *ProductCache) Set(ctx context.Context, product *entity.Product, version int64) error {
	data, err := json.Marshal(product)
	if err != nil {
		return err
	}

	key := versionKey(product.ID)
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return ErrStale
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, productKey(product.ID), data, ProductCacheTTL)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrStale
	}
	return err
}

// Invalidate drops the cached products and bumps their versions.
func (c *ProductCache) Invalidate(ctx context.Context, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Incr(ctx, versionKey(id))
			pipe.Del(ctx, productKey(id))
		}
		return nil
	})
	return err
}

// IdempotencyGuard remembers request keys so a retried checkout is not applied twice.
type IdempotencyGuard struct {
	rdb *redis.Client
}

func NewIdempotencyGuard(rdb *redis.Client) *IdempotencyGuard {
	return &IdempotencyGuard{rdb: rdb}
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotent-key:%s", key)
}

// Claim reserves key for 24 hours. It returns false when the key was already claimed.
func (g *IdempotencyGuard) Claim(ctx context.Context, key string) (bool, error) {
	return g.rdb.SetNX(ctx, idempotencyKey(key), "exists", IdempotencyTTL).Result()
}

// Release forgets key so the request can be retried.
func (g *IdempotencyGuard) Release(ctx context.Context, key string) error {
	return g.rdb.Del(ctx, idempotencyKey(key)).Err()
}
