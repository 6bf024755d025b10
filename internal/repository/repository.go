package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"webshop-service/internal/entity"
)

var (
	// ErrNotFound is the absence signal for lookups, updates and deletes by id.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a concurrent writer won: a guarded update matched no row,
	// or the database aborted the transaction (deadlock, lock wait timeout).
	ErrConflict = errors.New("concurrent update conflict")
	// ErrReferenced means a delete was refused by a foreign key.
	ErrReferenced = errors.New("row is still referenced")
)

// MySQL server error numbers translated by translateErr.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
	mysqlErrRowIsReferenced = 1451
)

type ProductStore interface {
	GetProducts(ctx context.Context) ([]entity.Product, error)
	GetProductByID(ctx context.Context, id int) (*entity.Product, error)
	// GetProductsByIDs returns the products that exist among ids, ordered by id.
	GetProductsByIDs(ctx context.Context, ids []int) ([]entity.Product, error)
	// GetProductForUpdate reads the product and holds a row lock until the transaction ends.
	GetProductForUpdate(ctx context.Context, id int) (*entity.Product, error)
	CreateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error)
	UpdateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error)
	UpdateProductStatus(ctx context.Context, id int, status entity.ProductStatus) (*entity.Product, error)
	DeleteProduct(ctx context.Context, id int) error
	IsProductReferenced(ctx context.Context, id int) (bool, error)
	// DecrementStock subtracts quantity, failing with ErrConflict when stock would go negative.
	DecrementStock(ctx context.Context, id int, quantity int) error
}

type CartStore interface {
	GetCartByUser(ctx context.Context, userID int) (*entity.Cart, error)
	// GetCartForUpdate is GetCartByUser holding a lock on the cart row.
	GetCartForUpdate(ctx context.Context, userID int) (*entity.Cart, error)
	GetOrCreateCart(ctx context.Context, userID int) (*entity.Cart, error)
	AddItem(ctx context.Context, cartID, productID, quantity int) (*entity.CartItem, error)
	SetItemQuantity(ctx context.Context, cartID, productID, quantity int) (*entity.CartItem, error)
	RemoveItem(ctx context.Context, cartID, productID int) (bool, error)
	ClearCart(ctx context.Context, cartID int) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *entity.Order) (*entity.Order, error)
	GetOrderByID(ctx context.Context, id int) (*entity.Order, error)
	ListOrders(ctx context.Context, filter entity.OrderFilter) ([]entity.Order, error)
	// UpdateOrderStatus sets the status; a nil decidedAt keeps the stored decision date.
	UpdateOrderStatus(ctx context.Context, id int, status entity.OrderStatus, decidedAt *time.Time) error
	DeleteOrder(ctx context.Context, id int) (bool, error)
	GetStats(ctx context.Context) (*entity.OrderStats, error)
}

// Tx groups the stores bound to one transactional scope.
type Tx interface {
	Products() ProductStore
	Carts() CartStore
	Orders() OrderStore
}

// Store hands out auto-committing stores and runs functions inside a transaction.
// ExecTx commits when fn returns nil and rolls back otherwise.
type Store interface {
	Tx
	ExecTx(ctx context.Context, fn func(tx Tx) error) error
}

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type queries struct {
	db DBTX
}

func (q queries) Products() ProductStore { return NewProductRepository(q.db) }
func (q queries) Carts() CartStore       { return NewCartRepository(q.db) }
func (q queries) Orders() OrderStore     { return NewOrderRepository(q.db) }

// SQLStore is the MySQL-backed Store.
type SQLStore struct {
	queries
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{queries: queries{db: db}, db: db}
}

func (s *SQLStore) ExecTx(ctx context.Context, fn func(tx Tx) error) error {
	// Start a transaction
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateErr(err)
	}

	if err := fn(queries{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	// Commit the transaction
	return translateErr(tx.Commit())
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrDeadlock, mysqlErrLockWaitTimeout:
			return fmt.Errorf("%w: %s", ErrConflict, myErr.Message)
		case mysqlErrRowIsReferenced:
			return fmt.Errorf("%w: %s", ErrReferenced, myErr.Message)
		}
	}
	return err
}

// rowsAffected reports ErrNotFound when the statement matched no row.
// Relies on the clientFoundRows DSN flag so unchanged rows still count.
func rowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}
