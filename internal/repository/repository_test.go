package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webshop-service/internal/entity"
)

var productCols = []string{"id", "name", "description", "image_url", "price", "quantity", "status", "seller_id", "date_posted"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestExecTxCommitsOnSuccess(t *testing.T) {
	db, mock := newMock(t)
	store := NewSQLStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM cart_items WHERE cart_id = ?")).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := store.ExecTx(context.Background(), func(tx Tx) error {
		return tx.Carts().ClearCart(context.Background(), 3)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecTxRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	store := NewSQLStore(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.ExecTx(context.Background(), func(tx Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslateErr(t *testing.T) {
	assert.ErrorIs(t, translateErr(sql.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, translateErr(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"}), ErrConflict)
	assert.ErrorIs(t, translateErr(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout"}), ErrConflict)
	assert.ErrorIs(t, translateErr(&mysql.MySQLError{Number: 1451, Message: "Cannot delete"}), ErrReferenced)

	other := &mysql.MySQLError{Number: 1064, Message: "syntax"}
	assert.Equal(t, other, translateErr(other))
	assert.NoError(t, translateErr(nil))
}

func TestGetProductByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)

	mock.ExpectQuery(q("FROM products WHERE id = ?")).WithArgs(9).WillReturnRows(sqlmock.NewRows(productCols))

	product, err := repo.GetProductByID(context.Background(), 9)
	assert.Nil(t, product)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductForUpdateLocksRow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)
	posted := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q("FROM products WHERE id = ? FOR UPDATE")).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(1, "Lamp", "desk lamp", "", "19.99", 5, "approved", 4, posted))

	product, err := repo.GetProductForUpdate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", product.Name)
	assert.Equal(t, 5, product.Quantity)
	assert.Equal(t, entity.ProductStatusApproved, product.Status)
	assert.True(t, decimal.RequireFromString("19.99").Equal(product.Price))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductsByIDs(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)
	posted := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q("FROM products WHERE id IN (?, ?) ORDER BY id")).WithArgs(3, 1).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(1, "Lamp", "", "", "19.99", 5, "approved", 4, posted).
			AddRow(3, "Desk", "", "", "120.00", 1, "approved", 4, posted))

	products, err := repo.GetProductsByIDs(context.Background(), []int{3, 1})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Lamp", products[0].Name)
	assert.Equal(t, "Desk", products[1].Name)

	products, err = repo.GetProductsByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementStockGuard(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)
	stmt := q("UPDATE products SET quantity = quantity - ? WHERE id = ? AND quantity >= ?")

	mock.ExpectExec(stmt).WithArgs(2, 1, 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(stmt).WithArgs(3, 1, 3).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DecrementStock(context.Background(), 1, 2))
	assert.ErrorIs(t, repo.DecrementStock(context.Background(), 1, 3), ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProduct(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)
	stmt := q("DELETE FROM products WHERE id = ?")

	mock.ExpectExec(stmt).WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(stmt).WithArgs(2).WillReturnError(&mysql.MySQLError{Number: 1451, Message: "a foreign key constraint fails"})
	mock.ExpectExec(stmt).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))

	assert.ErrorIs(t, repo.DeleteProduct(context.Background(), 1), ErrNotFound)
	assert.ErrorIs(t, repo.DeleteProduct(context.Background(), 2), ErrReferenced)
	assert.NoError(t, repo.DeleteProduct(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProductMissingIsNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)

	mock.ExpectExec(q("UPDATE products SET status = ? WHERE id = ?")).
		WithArgs("approved", 42).WillReturnResult(sqlmock.NewResult(0, 0))

	product, err := repo.UpdateProductStatus(context.Background(), 42, entity.ProductStatusApproved)
	assert.Nil(t, product)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsProductReferenced(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)

	mock.ExpectQuery(q("SELECT EXISTS (SELECT 1 FROM order_items WHERE product_id = ?)")).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	referenced, err := repo.IsProductReferenced(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, referenced)
	assert.NoError(t, mock.ExpectationsWereMet())
}
