package service

import (
	"context"
	"errors"

	"webshop-service/internal/entity"
	"webshop-service/internal/repository"
)

type CartService struct {
	store repository.Store
}

func NewCartService(store repository.Store) *CartService {
	return &CartService{store: store}
}

// GetOrCreateCart returns the user's cart, creating an empty one on first access.
// Each line carries its product.
func (s *CartService) GetOrCreateCart(ctx context.Context, userID int) (*entity.Cart, error) {
	var cart *entity.Cart
	err := s.store.ExecTx(ctx, func(tx repository.Tx) error {
		var err error
		cart, err = tx.Carts().GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		return attachCartProducts(ctx, tx.Products(), cart)
	})
	if err != nil {
		logger.Error().Err(err).Msgf("Error getting cart for user %d", userID)
		return nil, err
	}
	return cart, nil
}

// GetCart never creates a cart; a user without one gets repository.ErrNotFound.
func (s *CartService) GetCart(ctx context.Context, userID int) (*entity.Cart, error) {
	var cart *entity.Cart
	err := s.store.ExecTx(ctx, func(tx repository.Tx) error {
		var err error
		cart, err = tx.Carts().GetCartByUser(ctx, userID)
		if err != nil {
			return err
		}
		return attachCartProducts(ctx, tx.Products(), cart)
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// AddItem adds quantity to the user's line for productID. Stock is not checked here.
func (s *CartService) AddItem(ctx context.Context, userID, productID, quantity int) (*entity.CartItem, error) {
	return s.upsert(ctx, userID, productID, quantity, repository.CartStore.AddItem)
}

// UpdateItem sets the line quantity, inserting the line when it does not exist.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID, quantity int) (*entity.CartItem, error) {
	return s.upsert(ctx, userID, productID, quantity, repository.CartStore.SetItemQuantity)
}

type upsertFunc func(carts repository.CartStore, ctx context.Context, cartID, productID, quantity int) (*entity.CartItem, error)

func (s *CartService) upsert(ctx context.Context, userID, productID, quantity int, write upsertFunc) (*entity.CartItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var item *entity.CartItem
	err := s.store.ExecTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Products().GetProductByID(ctx, productID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return &ProductNotFoundError{ProductID: productID}
			}
			return err
		}

		cart, err := tx.Carts().GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}

		item, err = write(tx.Carts(), ctx, cart.ID, productID, quantity)
		return err
	})
	if err != nil {
		var notFound *ProductNotFoundError
		if !errors.As(err, &notFound) {
			logger.Error().Err(err).Msgf("Error writing product %d to cart of user %d", productID, userID)
		}
		return nil, err
	}
	return item, nil
}

// RemoveItem reports whether the line existed.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID int) (bool, error) {
	var found bool
	err := s.store.ExecTx(ctx, func(tx repository.Tx) error {
		cart, err := tx.Carts().GetCartByUser(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, ok := cart.Item(productID); !ok {
			return nil
		}
		found, err = tx.Carts().RemoveItem(ctx, cart.ID, productID)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msgf("Error removing product %d from cart of user %d", productID, userID)
		return false, err
	}
	return found, nil
}

// ClearCart empties the user's cart and keeps the cart itself.
func (s *CartService) ClearCart(ctx context.Context, userID int) error {
	err := s.store.ExecTx(ctx, func(tx repository.Tx) error {
		cart, err := tx.Carts().GetCartByUser(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Carts().ClearCart(ctx, cart.ID)
	})
	if err != nil {
		logger.Error().Err(err).Msgf("Error clearing cart of user %d", userID)
	}
	return err
}
