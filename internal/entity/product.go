package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductStatusPending  ProductStatus = "pending"
	ProductStatusApproved ProductStatus = "approved"
	ProductStatusRejected ProductStatus = "rejected"
)

// Valid reports whether s is one of the known product statuses.
func (s ProductStatus) Valid() bool {
	switch s {
	case ProductStatusPending, ProductStatusApproved, ProductStatusRejected:
		return true
	}
	return false
}

type Product struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Status      ProductStatus   `json:"status"`
	SellerID    int             `json:"seller_id"`
	DatePosted  time.Time       `json:"date_posted"`
}

/*
Mysql Table

CREATE TABLE products (
	id INT AUTO_INCREMENT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	description TEXT NOT NULL,
	image_url VARCHAR(512) NOT NULL DEFAULT '',
	price DECIMAL(12,2) NOT NULL,
	quantity INT NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'pending',
	seller_id INT NOT NULL,
	date_posted DATETIME(6) NOT NULL
);
*/
