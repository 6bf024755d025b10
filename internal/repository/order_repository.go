package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"webshop-service/internal/entity"
)

const orderColumns = `o.id, o.customer_name, o.address, o.phone, o.email, o.status, o.date_created, o.date_decided`

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db}
}

func scanOrder(row scanner) (*entity.Order, error) {
	order := &entity.Order{}
	var decided sql.NullTime
	err := row.Scan(&order.ID, &order.CustomerName, &order.Address, &order.Phone, &order.Email,
		&order.Status, &order.DateCreated, &decided)
	if err != nil {
		return nil, translateErr(err)
	}
	if decided.Valid {
		t := decided.Time
		order.DateDecided = &t
	}
	order.Items = []entity.OrderItem{}
	return order, nil
}

func (r *OrderRepository) GetOrderByID(ctx context.Context, id int) (*entity.Order, error) {
	orderQuery := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = ?`

	order, err := scanOrder(r.db.QueryRowContext(ctx, orderQuery, id))
	if err != nil {
		return nil, err
	}

	orders := []entity.Order{*order}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// CreateOrder inserts the order row and its items. It expects to run inside a transaction.
func (r *OrderRepository) CreateOrder(ctx context.Context, order *entity.Order) (*entity.Order, error) {
	// Insert order
	orderQuery := `INSERT INTO orders (customer_name, address, phone, email, status, date_created, date_decided) VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, orderQuery, order.CustomerName, order.Address, order.Phone, order.Email,
		order.Status, order.DateCreated, order.DateDecided)
	if err != nil {
		return nil, translateErr(err)
	}

	orderID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if len(order.Items) > 0 {
		// Insert order items with batch
		itemQuery := `INSERT INTO order_items (order_id, product_id, quantity, price_at_order_time) VALUES `

		var values []interface{}
		for _, item := range order.Items {
			itemQuery += "(?, ?, ?, ?),"
			values = append(values, orderID, item.ProductID, item.Quantity, item.PriceAtOrderTime)
		}

		// Remove the trailing comma
		itemQuery = itemQuery[:len(itemQuery)-1]

		if _, err := r.db.ExecContext(ctx, itemQuery, values...); err != nil {
			return nil, translateErr(err)
		}
	}

	return r.GetOrderByID(ctx, int(orderID))
}

func (r *OrderRepository) ListOrders(ctx context.Context, filter entity.OrderFilter) ([]entity.Order, error) {
	var where []string
	var args []interface{}
	if filter.Status != nil {
		where = append(where, "o.status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Email != "" {
		where = append(where, "o.email = ?")
		args = append(args, filter.Email)
	}
	if filter.AdminID != nil {
		where = append(where, `o.id IN (SELECT oi.order_id FROM order_items oi JOIN products p ON p.id = oi.product_id WHERE p.seller_id = ?)`)
		args = append(args, *filter.AdminID)
	}

	query := `SELECT ` + orderColumns + ` FROM orders o`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY o.date_created DESC, o.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []entity.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of every order in one query.
func (r *OrderRepository) attachItems(ctx context.Context, orders []entity.Order) error {
	if len(orders) == 0 {
		return nil
	}

	index := make(map[int]int, len(orders))
	placeholders := make([]string, len(orders))
	args := make([]interface{}, len(orders))
	for i, order := range orders {
		index[order.ID] = i
		placeholders[i] = "?"
		args[i] = order.ID
	}

	query := `SELECT id, order_id, product_id, quantity, price_at_order_time FROM order_items WHERE order_id IN (` +
		strings.Join(placeholders, ", ") + `) ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		item := entity.OrderItem{}
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.PriceAtOrderTime); err != nil {
			return err
		}
		i, ok := index[item.OrderID]
		if !ok {
			continue
		}
		orders[i].Items = append(orders[i].Items, item)
	}
	return rows.Err()
}

func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, id int, status entity.OrderStatus, decidedAt *time.Time) error {
	query := `UPDATE orders SET status = ?, date_decided = COALESCE(?, date_decided) WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, status, decidedAt, id)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

func (r *OrderRepository) DeleteOrder(ctx context.Context, id int) (bool, error) {
	// Delete order items
	itemQuery := `DELETE FROM order_items WHERE order_id = ?`
	if _, err := r.db.ExecContext(ctx, itemQuery, id); err != nil {
		return false, err
	}

	// Delete order
	orderQuery := `DELETE FROM orders WHERE id = ?`
	res, err := r.db.ExecContext(ctx, orderQuery, id)
	if err != nil {
		return false, err
	}
	if err := rowsAffected(res); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetStats aggregates over all orders. Run it inside a transaction for a consistent snapshot.
func (r *OrderRepository) GetStats(ctx context.Context) (*entity.OrderStats, error) {
	stats := &entity.OrderStats{TotalRevenue: decimal.Zero}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&stats.TotalOrders); err != nil {
		return nil, err
	}

	totalsQuery := `SELECT COALESCE(SUM(quantity * price_at_order_time), 0), COALESCE(SUM(quantity), 0) FROM order_items`
	if err := r.db.QueryRowContext(ctx, totalsQuery).Scan(&stats.TotalRevenue, &stats.TotalItemsSold); err != nil {
		return nil, err
	}

	// Ties go to the lowest product id.
	bestSellerQuery := `SELECT p.name, SUM(oi.quantity) AS total_sold FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		GROUP BY p.id, p.name
		ORDER BY total_sold DESC, p.id ASC
		LIMIT 1`
	var name string
	var sold int
	err := r.db.QueryRowContext(ctx, bestSellerQuery).Scan(&name, &sold)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	default:
		stats.BestSeller = &name
		stats.BestSellerQuantity = sold
	}

	return stats, nil
}
