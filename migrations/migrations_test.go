package migrations

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoMigrateCreatesTablesInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, name := range []string{"products", "carts", "cart_items", "orders", "order_items"} {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + name + " ").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, AutoMigrate(context.Background(), db, 0, 0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAutoMigrateRetries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS products").WillReturnError(errors.New("server gone away"))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS products").WillReturnResult(sqlmock.NewResult(0, 0))
	for _, name := range []string{"carts", "cart_items", "orders", "order_items"} {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + name + " ").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, AutoMigrate(context.Background(), db, 2, 0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAutoMigrateGivesUp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("access denied")
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS products").WillReturnError(boom)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS products").WillReturnError(boom)

	err = AutoMigrate(context.Background(), db, 1, 0)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
