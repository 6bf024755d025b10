package repository

import (
	"context"
	"errors"
	"time"

	"webshop-service/internal/entity"
)

type CartRepository struct {
	db DBTX
}

func NewCartRepository(db DBTX) *CartRepository {
	return &CartRepository{db}
}

func (r *CartRepository) GetCartByUser(ctx context.Context, userID int) (*entity.Cart, error) {
	return r.getCart(ctx, `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = ?`, userID)
}

func (r *CartRepository) GetCartForUpdate(ctx context.Context, userID int) (*entity.Cart, error) {
	return r.getCart(ctx, `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = ? FOR UPDATE`, userID)
}

func (r *CartRepository) getCart(ctx context.Context, cartQuery string, userID int) (*entity.Cart, error) {
	itemQuery := `SELECT id, cart_id, product_id, quantity FROM cart_items WHERE cart_id = ? ORDER BY id`

	cart := &entity.Cart{}
	err := r.db.QueryRowContext(ctx, cartQuery, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}

	rows, err := r.db.QueryContext(ctx, itemQuery, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cart.Items = []entity.CartItem{}
	for rows.Next() {
		item := entity.CartItem{}
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}

	return cart, rows.Err()
}

// GetOrCreateCart returns the user's cart, creating an empty one on first access.
// INSERT IGNORE on the unique user_id keeps concurrent first calls down to one row.
func (r *CartRepository) GetOrCreateCart(ctx context.Context, userID int) (*entity.Cart, error) {
	cart, err := r.GetCartByUser(ctx, userID)
	if !errors.Is(err, ErrNotFound) {
		return cart, err
	}

	now := time.Now().UTC()
	query := `INSERT IGNORE INTO carts (user_id, created_at, updated_at) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, userID, now, now); err != nil {
		return nil, err
	}

	// A locking read sees a row committed by a concurrent first call even inside
	// a repeatable-read snapshot.
	return r.GetCartForUpdate(ctx, userID)
}

func (r *CartRepository) AddItem(ctx context.Context, cartID, productID, quantity int) (*entity.CartItem, error) {
	query := `INSERT INTO cart_items (cart_id, product_id, quantity) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`
	if _, err := r.db.ExecContext(ctx, query, cartID, productID, quantity); err != nil {
		return nil, translateErr(err)
	}
	return r.getItem(ctx, cartID, productID)
}

func (r *CartRepository) SetItemQuantity(ctx context.Context, cartID, productID, quantity int) (*entity.CartItem, error) {
	query := `INSERT INTO cart_items (cart_id, product_id, quantity) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity)`
	if _, err := r.db.ExecContext(ctx, query, cartID, productID, quantity); err != nil {
		return nil, translateErr(err)
	}
	return r.getItem(ctx, cartID, productID)
}

func (r *CartRepository) getItem(ctx context.Context, cartID, productID int) (*entity.CartItem, error) {
	query := `SELECT id, cart_id, product_id, quantity FROM cart_items WHERE cart_id = ? AND product_id = ?`
	item := &entity.CartItem{}
	err := r.db.QueryRowContext(ctx, query, cartID, productID).Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity)
	if err != nil {
		return nil, translateErr(err)
	}
	return item, nil
}

func (r *CartRepository) RemoveItem(ctx context.Context, cartID, productID int) (bool, error) {
	query := `DELETE FROM cart_items WHERE cart_id = ? AND product_id = ?`
	res, err := r.db.ExecContext(ctx, query, cartID, productID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearCart deletes every line; the cart row stays for reuse.
func (r *CartRepository) ClearCart(ctx context.Context, cartID int) error {
	query := `DELETE FROM cart_items WHERE cart_id = ?`
	_, err := r.db.ExecContext(ctx, query, cartID)
	return translateErr(err)
}
