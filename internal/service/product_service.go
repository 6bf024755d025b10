package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"webshop-service/internal/cache"
	"webshop-service/internal/entity"
	"webshop-service/internal/repository"
)

// ProductCache is the read-through cache in front of the catalog.
// Set drops the write with cache.ErrStale when the product was invalidated
// after version was read.
type ProductCache interface {
	Get(ctx context.Context, id int) (*entity.Product, error)
	Version(ctx context.Context, id int) (int64, error)
	Set(ctx context.Context, product *entity.Product, version int64) error
	Invalidate(ctx context.Context, ids ...int) error
}

type ProductService struct {
	store repository.Store
	cache ProductCache
	now   func() time.Time
}

// NewProductService creates a ProductService. productCache may be nil.
func NewProductService(store repository.Store, productCache ProductCache) *ProductService {
	return &ProductService{
		store: store,
		cache: productCache,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func validateProduct(p *entity.Product) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	case !p.Price.Equal(p.Price.Round(2)):
		return fmt.Errorf("%w: price must have at most two decimal places", ErrInvalidProduct)
	case p.Quantity < 0:
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidProduct)
	}
	return nil
}

func (s *ProductService) GetProducts(ctx context.Context) ([]entity.Product, error) {
	products, err := s.store.Products().GetProducts(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Error listing products")
		return nil, err
	}
	return products, nil
}

// GetProduct reads through the cache. Cache failures fall back to the store.
func (s *ProductService) GetProduct(ctx context.Context, id int) (*entity.Product, error) {
	var version int64
	cacheable := false
	if s.cache != nil {
		product, err := s.cache.Get(ctx, id)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			logger.Warn().Err(err).Msgf("Error reading product %d from cache", id)
		}
		if version, err = s.cache.Version(ctx, id); err == nil {
			cacheable = true
		}
	}

	product, err := s.store.Products().GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if cacheable {
		s.fill(ctx, product, version)
	}
	return product, nil
}

func (s *ProductService) fill(ctx context.Context, product *entity.Product, version int64) bool {
	err := s.cache.Set(ctx, product, version)
	if err != nil && !errors.Is(err, cache.ErrStale) {
		logger.Warn().Err(err).Msgf("Error caching product %d", product.ID)
	}
	return err == nil
}

func (s *ProductService) CreateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	product.ID = 0
	product.Status = entity.ProductStatusPending
	product.DatePosted = s.now()

	created, err := s.store.Products().CreateProduct(ctx, product)
	if err != nil {
		logger.Error().Err(err).Msg("Error creating product")
		return nil, err
	}
	return created, nil
}

// UpdateProduct replaces the mutable fields of product id.
func (s *ProductService) UpdateProduct(ctx context.Context, id int, product *entity.Product) (*entity.Product, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	product.ID = id

	updated, err := s.store.Products().UpdateProduct(ctx, product)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Error().Err(err).Msgf("Error updating product %d", id)
		}
		return nil, err
	}
	s.invalidate(ctx, id)
	return updated, nil
}

func (s *ProductService) UpdateProductStatus(ctx context.Context, id int, status entity.ProductStatus) (*entity.Product, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	updated, err := s.store.Products().UpdateProductStatus(ctx, id, status)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Error().Err(err).Msgf("Error updating status of product %d", id)
		}
		return nil, err
	}
	s.invalidate(ctx, id)
	return updated, nil
}

// DeleteProduct refuses to delete a product that appears in any order.
func (s *ProductService) DeleteProduct(ctx context.Context, id int) error {
	err := s.store.ExecTx(ctx, func(tx repository.Tx) error {
		referenced, err := tx.Products().IsProductReferenced(ctx, id)
		if err != nil {
			return err
		}
		if referenced {
			return ErrProductInUse
		}
		return tx.Products().DeleteProduct(ctx, id)
	})
	if errors.Is(err, repository.ErrReferenced) {
		err = ErrProductInUse
	}
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, ErrProductInUse) {
			logger.Error().Err(err).Msgf("Error deleting product %d", id)
		}
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// WarmCache loads every product into the cache. Individual write failures are only logged.
func (s *ProductService) WarmCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	products, err := s.store.Products().GetProducts(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Error getting products")
		return err
	}

	versions := make(map[int]int64, len(products))
	for _, product := range products {
		version, err := s.cache.Version(ctx, product.ID)
		if err != nil {
			logger.Error().Err(err).Msg("Error reading product cache versions")
			return err
		}
		versions[product.ID] = version
	}

	// Read again so no row is older than the version it is cached under.
	products, err = s.store.Products().GetProducts(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Error getting products")
		return err
	}

	warmed := 0
	for i := range products {
		version, ok := versions[products[i].ID]
		if ok && s.fill(ctx, &products[i], version) {
			warmed++
		}
	}
	logger.Info().Msgf("Warmed product cache with %d products", warmed)
	return nil
}

func (s *ProductService) invalidate(ctx context.Context, ids ...int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		logger.Warn().Err(err).Msgf("Error invalidating cached products %v", ids)
	}
}

// loadProducts returns the catalog entries of ids keyed by id. Missing products are left out.
func loadProducts(ctx context.Context, products repository.ProductStore, ids []int) (map[int]*entity.Product, error) {
	unique := make([]int, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	found, err := products.GetProductsByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]*entity.Product, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}
	return byID, nil
}

func attachCartProducts(ctx context.Context, products repository.ProductStore, cart *entity.Cart) error {
	ids := make([]int, len(cart.Items))
	for i, item := range cart.Items {
		ids[i] = item.ProductID
	}
	byID, err := loadProducts(ctx, products, ids)
	if err != nil {
		return err
	}
	for i := range cart.Items {
		cart.Items[i].Product = byID[cart.Items[i].ProductID]
	}
	return nil
}

func attachOrderProducts(ctx context.Context, products repository.ProductStore, orders []entity.Order) error {
	var ids []int
	for _, order := range orders {
		for _, item := range order.Items {
			ids = append(ids, item.ProductID)
		}
	}
	byID, err := loadProducts(ctx, products, ids)
	if err != nil {
		return err
	}
	for i := range orders {
		for j := range orders[i].Items {
			orders[i].Items[j].Product = byID[orders[i].Items[j].ProductID]
		}
	}
	return nil
}
