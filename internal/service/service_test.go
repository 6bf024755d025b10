package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"webshop-service/internal/entity"
	"webshop-service/internal/metrics"
	"webshop-service/internal/repository"
	"webshop-service/internal/repository/memory"
)

var customer = entity.CustomerInfo{
	CustomerName: "Ana",
	Address:      "Main street 1",
	Phone:        "555-0100",
	Email:        "ana@example.com",
}

type publishedEvent struct {
	event   string
	orderID int
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, order *entity.Order, event string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{event: event, orderID: order.ID})
	return p.err
}

// conflictingStore fails the first n transactions with ErrConflict after running them.
type conflictingStore struct {
	repository.Store
	mu sync.Mutex
	n  int
}

func (s *conflictingStore) ExecTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.Store.ExecTx(ctx, func(tx repository.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.n > 0 {
			s.n--
			return repository.ErrConflict
		}
		return nil
	})
}

// hidingStore makes one product invisible to row-locking reads inside transactions.
type hidingStore struct {
	repository.Store
	hidden int
}

func (s *hidingStore) ExecTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.Store.ExecTx(ctx, func(tx repository.Tx) error {
		return fn(hidingTx{Tx: tx, hidden: s.hidden})
	})
}

type hidingTx struct {
	repository.Tx
	hidden int
}

func (t hidingTx) Products() repository.ProductStore {
	return hidingProducts{ProductStore: t.Tx.Products(), hidden: t.hidden}
}

type hidingProducts struct {
	repository.ProductStore
	hidden int
}

func (p hidingProducts) GetProductForUpdate(ctx context.Context, id int) (*entity.Product, error) {
	if id == p.hidden {
		return nil, repository.ErrNotFound
	}
	return p.ProductStore.GetProductForUpdate(ctx, id)
}

// racingStore runs onRead right after every auto-committed product lookup.
type racingStore struct {
	repository.Store
	onRead func()
}

func (s *racingStore) Products() repository.ProductStore {
	return racingProducts{ProductStore: s.Store.Products(), onRead: s.onRead}
}

type racingProducts struct {
	repository.ProductStore
	onRead func()
}

func (p racingProducts) GetProductByID(ctx context.Context, id int) (*entity.Product, error) {
	product, err := p.ProductStore.GetProductByID(ctx, id)
	p.onRead()
	return product, err
}

type fixture struct {
	store     *memory.Store
	products  *ProductService
	carts     *CartService
	orders    *OrderService
	publisher *recordingPublisher
	metrics   *metrics.Metrics
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		store:     store,
		publisher: &recordingPublisher{},
		metrics:   metrics.New(prometheus.NewRegistry()),
		now:       time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.products = NewProductService(store, nil)
	f.carts = NewCartService(store)
	f.orders = NewOrderService(store, f.publisher, nil, nil, f.metrics, false)
	f.orders.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) product(t *testing.T, name, price string, quantity int) *entity.Product {
	t.Helper()
	p, err := f.products.CreateProduct(context.Background(), &entity.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Quantity: quantity,
		SellerID: 1,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T, id int) int {
	t.Helper()
	p, err := f.store.Products().GetProductByID(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func (f *fixture) add(t *testing.T, userID, productID, quantity int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), userID, productID, quantity)
	require.NoError(t, err)
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	orders, err := f.store.Orders().ListOrders(context.Background(), entity.OrderFilter{})
	require.NoError(t, err)
	return len(orders)
}

var errPublish = errors.New("broker unavailable")
