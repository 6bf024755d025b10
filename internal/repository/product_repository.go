package repository

import (
	"context"
	"strings"

	"webshop-service/internal/entity"
)

const productColumns = `id, name, description, image_url, price, quantity, status, seller_id, date_posted`

type ProductRepository struct {
	db DBTX
}

func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db}
}

func scanProduct(row scanner) (*entity.Product, error) {
	product := &entity.Product{}
	err := row.Scan(&product.ID, &product.Name, &product.Description, &product.ImageURL, &product.Price,
		&product.Quantity, &product.Status, &product.SellerID, &product.DatePosted)
	if err != nil {
		return nil, translateErr(err)
	}
	return product, nil
}

func (r *ProductRepository) GetProducts(ctx context.Context) ([]entity.Product, error) {
	return r.queryProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
}

func (r *ProductRepository) GetProductsByIDs(ctx context.Context, ids []int) ([]entity.Product, error) {
	if len(ids) == 0 {
		return []entity.Product{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (` + strings.Join(placeholders, ", ") + `) ORDER BY id`
	return r.queryProducts(ctx, query, args...)
}

func (r *ProductRepository) queryProducts(ctx context.Context, query string, args ...interface{}) ([]entity.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []entity.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}

	return products, rows.Err()
}

func (r *ProductRepository) GetProductByID(ctx context.Context, id int) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`
	return scanProduct(r.db.QueryRowContext(ctx, query, id))
}

func (r *ProductRepository) GetProductForUpdate(ctx context.Context, id int) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ? FOR UPDATE`
	return scanProduct(r.db.QueryRowContext(ctx, query, id))
}

func (r *ProductRepository) CreateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	query := `INSERT INTO products (name, description, image_url, price, quantity, status, seller_id, date_posted) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, product.Name, product.Description, product.ImageURL, product.Price,
		product.Quantity, product.Status, product.SellerID, product.DatePosted)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	product.ID = int(id)
	return product, nil
}

// UpdateProduct replaces the mutable fields. Status and posting date are left alone.
func (r *ProductRepository) UpdateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	query := `UPDATE products SET name = ?, description = ?, image_url = ?, price = ?, quantity = ?, seller_id = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, product.Name, product.Description, product.ImageURL, product.Price,
		product.Quantity, product.SellerID, product.ID)
	if err != nil {
		return nil, err
	}
	if err := rowsAffected(res); err != nil {
		return nil, err
	}
	return r.GetProductByID(ctx, product.ID)
}

func (r *ProductRepository) UpdateProductStatus(ctx context.Context, id int, status entity.ProductStatus) (*entity.Product, error) {
	query := `UPDATE products SET status = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return nil, err
	}
	if err := rowsAffected(res); err != nil {
		return nil, err
	}
	return r.GetProductByID(ctx, id)
}

func (r *ProductRepository) DeleteProduct(ctx context.Context, id int) error {
	query := `DELETE FROM products WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return translateErr(err)
	}
	return rowsAffected(res)
}

func (r *ProductRepository) IsProductReferenced(ctx context.Context, id int) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM order_items WHERE product_id = ?)`
	var referenced bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&referenced); err != nil {
		return false, err
	}
	return referenced, nil
}

func (r *ProductRepository) DecrementStock(ctx context.Context, id int, quantity int) error {
	query := `UPDATE products SET quantity = quantity - ? WHERE id = ? AND quantity >= ?`
	res, err := r.db.ExecContext(ctx, query, quantity, id, quantity)
	if err != nil {
		return translateErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
