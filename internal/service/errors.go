package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrOrderNotFound     = errors.New("order not found or has no items")
	ErrStockConflict     = errors.New("stock changed by a concurrent checkout, please retry")
	ErrProductInUse      = errors.New("product is referenced by existing orders")
	ErrInvalidQuantity   = errors.New("quantity must be greater than zero")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidProduct    = errors.New("invalid product")
	ErrDuplicateRequest  = errors.New("idempotent key already exists")
)

// ProductNotFoundError is returned by checkout when a cart line references a deleted product.
type ProductNotFoundError struct {
	ProductID int
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

type InsufficientStockError struct {
	ProductID int
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: available %d, requested %d", e.Name, e.Available, e.Requested)
}
