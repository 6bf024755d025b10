package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCompleted OrderStatus = "completed"
)

// orderTransitions is the lifecycle graph: pending -> accepted|rejected, accepted -> completed.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:  {OrderStatusAccepted, OrderStatusRejected},
	OrderStatusAccepted: {OrderStatusCompleted},
}

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusAccepted, OrderStatusRejected, OrderStatusCompleted:
		return true
	}
	return false
}

// IsDecision reports whether entering s stamps the order's decision date.
func (s OrderStatus) IsDecision() bool {
	return s == OrderStatusAccepted || s == OrderStatusRejected || s == OrderStatusCompleted
}

// CanTransitionTo reports whether next is reachable from s in one step of the lifecycle.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Order struct {
	ID           int         `json:"id"`
	CustomerName string      `json:"customer_name"`
	Address      string      `json:"address"`
	Phone        string      `json:"phone"`
	Email        string      `json:"email"`
	Status       OrderStatus `json:"status"`
	DateCreated  time.Time   `json:"date_created"`
	DateDecided  *time.Time  `json:"date_decided"`
	Items        []OrderItem `json:"items"`
}

type OrderItem struct {
	ID               int             `json:"id"`
	OrderID          int             `json:"order_id"`
	ProductID        int             `json:"product_id"`
	Quantity         int             `json:"quantity"`
	PriceAtOrderTime decimal.Decimal `json:"price_at_order_time"`
	// Product is the current catalog entry, filled in on reads.
	Product *Product `json:"product,omitempty"`
}

// Subtotal is quantity times the price captured when the order was placed.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.PriceAtOrderTime.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Total sums the item subtotals.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// CustomerInfo is the contact data captured on an order at checkout.
type CustomerInfo struct {
	CustomerName string `json:"customer_name"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
}

// OrderFilter narrows order listings. Zero values mean "any".
type OrderFilter struct {
	Status  *OrderStatus
	Email   string
	AdminID *int
}

type OrderStats struct {
	TotalOrders        int             `json:"total_orders"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	TotalItemsSold     int             `json:"total_items_sold"`
	BestSeller         *string         `json:"best_seller"`
	BestSellerQuantity int             `json:"best_seller_quantity"`
}

type ReorderResult struct {
	OrderID    int    `json:"order_id"`
	UserID     int    `json:"user_id"`
	ItemsAdded int    `json:"items_added"`
	Message    string `json:"message"`
}

/*
Mysql Table

CREATE TABLE orders (
	id INT AUTO_INCREMENT PRIMARY KEY,
	customer_name VARCHAR(255) NOT NULL,
	address VARCHAR(512) NOT NULL,
	phone VARCHAR(64) NOT NULL,
	email VARCHAR(255) NOT NULL,
	status VARCHAR(20) NOT NULL,
	date_created DATETIME(6) NOT NULL,
	date_decided DATETIME(6) NULL
);

CREATE TABLE order_items (
	id INT AUTO_INCREMENT PRIMARY KEY,
	order_id INT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	product_id INT NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
	quantity INT NOT NULL,
	price_at_order_time DECIMAL(12,2) NOT NULL
);
*/
