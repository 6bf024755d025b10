package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// tables are created in dependency order.
var tables = []struct {
	name  string
	query string
}{
	{"products", `
		CREATE TABLE IF NOT EXISTS products (
			id INT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			image_url VARCHAR(512) NOT NULL DEFAULT '',
			price DECIMAL(12,2) NOT NULL,
			quantity INT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			seller_id INT NOT NULL,
			date_posted DATETIME(6) NOT NULL,
			INDEX idx_products_seller (seller_id),
			CHECK (price >= 0),
			CHECK (quantity >= 0)
		) ENGINE=InnoDB;
	`},
	{"carts", `
		CREATE TABLE IF NOT EXISTS carts (
			id INT AUTO_INCREMENT PRIMARY KEY,
			user_id INT NOT NULL UNIQUE,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL
		) ENGINE=InnoDB;
	`},
	{"cart_items", `
		CREATE TABLE IF NOT EXISTS cart_items (
			id INT AUTO_INCREMENT PRIMARY KEY,
			cart_id INT NOT NULL,
			product_id INT NOT NULL,
			quantity INT NOT NULL,
			UNIQUE KEY uq_cart_product (cart_id, product_id),
			FOREIGN KEY (cart_id) REFERENCES carts(id) ON DELETE CASCADE,
			FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE,
			CHECK (quantity > 0)
		) ENGINE=InnoDB;
	`},
	{"orders", `
		CREATE TABLE IF NOT EXISTS orders (
			id INT AUTO_INCREMENT PRIMARY KEY,
			customer_name VARCHAR(255) NOT NULL,
			address VARCHAR(512) NOT NULL,
			phone VARCHAR(64) NOT NULL,
			email VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL,
			date_created DATETIME(6) NOT NULL,
			date_decided DATETIME(6) NULL,
			INDEX idx_orders_email (email),
			INDEX idx_orders_created (date_created, id)
		) ENGINE=InnoDB;
	`},
	{"order_items", `
		CREATE TABLE IF NOT EXISTS order_items (
			id INT AUTO_INCREMENT PRIMARY KEY,
			order_id INT NOT NULL,
			product_id INT NOT NULL,
			quantity INT NOT NULL,
			price_at_order_time DECIMAL(12,2) NOT NULL,
			FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE,
			FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE RESTRICT
		) ENGINE=InnoDB;
	`},
}

// AutoMigrate creates the schema if it does not exist, retrying each table up to retries times.
func AutoMigrate(ctx context.Context, db *sql.DB, retries int, wait time.Duration) error {
	for _, table := range tables {
		_, err := db.ExecContext(ctx, table.query)
		// Retry creating the table
		for i := 0; err != nil && i < retries; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			_, err = db.ExecContext(ctx, table.query)
		}
		if err != nil {
			return fmt.Errorf("create table %s: %w", table.name, err)
		}
	}
	return nil
}
