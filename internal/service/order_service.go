package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"webshop-service/internal/entity"
	"webshop-service/internal/events"
	"webshop-service/internal/metrics"
	"webshop-service/internal/repository"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// maxCheckoutRetries bounds how often a checkout transaction is replayed after a stock conflict.
const maxCheckoutRetries = 3

// EventPublisher is satisfied by *events.Publisher.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, order *entity.Order, event string) error
}

// IdempotencyGuard is satisfied by *cache.IdempotencyGuard.
type IdempotencyGuard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// OrderService converts carts into orders and drives the order lifecycle.
type OrderService struct {
	store              repository.Store
	publisher          EventPublisher
	guard              IdempotencyGuard
	cache              ProductCache
	metrics            *metrics.Metrics
	enforceTransitions bool
	now                func() time.Time
}

// NewOrderService creates a new instance of OrderService. publisher, guard,
// productCache and m may be nil.
func NewOrderService(store repository.Store, publisher EventPublisher, guard IdempotencyGuard, productCache ProductCache, m *metrics.Metrics, enforceTransitions bool) *OrderService {
	return &OrderService{
		store:              store,
		publisher:          publisher,
		guard:              guard,
		cache:              productCache,
		metrics:            m,
		enforceTransitions: enforceTransitions,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrderFromCart turns the user's cart into a pending order in one transaction.
// A non-empty idempotentKey is claimed first; a key seen within 24 hours is rejected
// with ErrDuplicateRequest. The claim is released again when checkout fails.
func (s *OrderService) CreateOrderFromCart(ctx context.Context, userID int, info entity.CustomerInfo, idempotentKey string) (*entity.Order, error) {
	claimed := false
	if idempotentKey != "" && s.guard != nil {
		ok, err := s.guard.Claim(ctx, idempotentKey)
		if err != nil {
			logger.Error().Err(err).Msgf("Error claiming idempotent key %s", idempotentKey)
			s.metrics.ObserveCheckout(metrics.OutcomeError)
			return nil, err
		}
		if !ok {
			s.metrics.ObserveCheckout(metrics.OutcomeDuplicate)
			return nil, ErrDuplicateRequest
		}
		claimed = true
	}

	order, err := s.checkout(ctx, userID, info)
	if err != nil {
		if claimed {
			if relErr := s.guard.Release(context.WithoutCancel(ctx), idempotentKey); relErr != nil {
				logger.Warn().Err(relErr).Msgf("Error releasing idempotent key %s", idempotentKey)
			}
		}
		s.metrics.ObserveCheckout(checkoutOutcome(err))
		return nil, err
	}

	s.metrics.ObserveCheckout(metrics.OutcomeCreated)
	s.publish(ctx, order, events.OrderCreated)

	ids := make([]int, len(order.Items))
	for i, item := range order.Items {
		ids[i] = item.ProductID
	}
	s.invalidateProducts(ctx, ids)

	return order, nil
}

// checkout replays the checkout transaction while it loses stock races.
func (s *OrderService) checkout(ctx context.Context, userID int, info entity.CustomerInfo) (*entity.Order, error) {
	for attempt := 0; ; attempt++ {
		var order *entity.Order
		err := s.store.ExecTx(ctx, func(tx repository.Tx) error {
			var err error
			order, err = s.placeOrder(ctx, tx, userID, info)
			return err
		})
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			logCheckoutError(err, userID)
			return nil, err
		}
		if attempt == maxCheckoutRetries {
			logger.Error().Err(err).Msgf("Checkout for user %d kept conflicting, giving up", userID)
			return nil, fmt.Errorf("%w: %v", ErrStockConflict, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		s.metrics.ObserveRetry()
		logger.Warn().Err(err).Msgf("Checkout for user %d conflicted, retrying (%d/%d)", userID, attempt+1, maxCheckoutRetries)
	}
}

// placeOrder validates every cart line against locked product rows before writing anything.
func (s *OrderService) placeOrder(ctx context.Context, tx repository.Tx, userID int, info entity.CustomerInfo) (*entity.Order, error) {
	cart, err := tx.Carts().GetCartForUpdate(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	// Lock products in id order so concurrent checkouts cannot deadlock each other.
	lines := append([]entity.CartItem(nil), cart.Items...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	items := make([]entity.OrderItem, 0, len(lines))
	locked := make(map[int]*entity.Product, len(lines))
	for _, line := range lines {
		product, err := tx.Products().GetProductForUpdate(ctx, line.ProductID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ProductNotFoundError{ProductID: line.ProductID}
		}
		if err != nil {
			return nil, err
		}
		if product.Quantity < line.Quantity {
			return nil, &InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Available: product.Quantity,
				Requested: line.Quantity,
			}
		}
		// Reported back with the stock left after this order.
		product.Quantity -= line.Quantity
		locked[product.ID] = product
		items = append(items, entity.OrderItem{
			ProductID:        product.ID,
			Quantity:         line.Quantity,
			PriceAtOrderTime: product.Price,
		})
	}

	order, err := tx.Orders().CreateOrder(ctx, &entity.Order{
		CustomerName: info.CustomerName,
		Address:      info.Address,
		Phone:        info.Phone,
		Email:        info.Email,
		Status:       entity.OrderStatusPending,
		DateCreated:  s.now(),
		Items:        items,
	})
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if err := tx.Products().DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}

	if err := tx.Carts().ClearCart(ctx, cart.ID); err != nil {
		return nil, err
	}

	for i := range order.Items {
		order.Items[i].Product = locked[order.Items[i].ProductID]
	}
	return order, nil
}

func logCheckoutError(err error, userID int) {
	var notFound *ProductNotFoundError
	var insufficient *InsufficientStockError
	switch {
	case errors.Is(err, ErrEmptyCart):
		logger.Info().Msgf("Checkout for user %d rejected: cart is empty", userID)
	case errors.As(err, &notFound), errors.As(err, &insufficient):
		logger.Warn().Err(err).Msgf("Checkout for user %d rejected", userID)
	default:
		logger.Error().Err(err).Msgf("Error checking out cart of user %d", userID)
	}
}

func checkoutOutcome(err error) string {
	var notFound *ProductNotFoundError
	var insufficient *InsufficientStockError
	switch {
	case errors.Is(err, ErrEmptyCart):
		return metrics.OutcomeEmptyCart
	case errors.As(err, &notFound):
		return metrics.OutcomeProductNotFound
	case errors.As(err, &insufficient):
		return metrics.OutcomeInsufficientStock
	case errors.Is(err, ErrStockConflict):
		return metrics.OutcomeConflict
	}
	return metrics.OutcomeError
}

// GetOrder returns the order with the catalog entry of every item.
func (s *OrderService) GetOrder(ctx context.Context, id int) (*entity.Order, error) {
	var order *entity.Order
	err := s.store.ExecTx(ctx, func(tx repository.Tx) error {
		found, err := tx.Orders().GetOrderByID(ctx, id)
		if err != nil {
			return err
		}
		orders := []entity.Order{*found}
		if err := attachOrderProducts(ctx, tx.Products(), orders); err != nil {
			return err
		}
		order = &orders[0]
		return nil
	})
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Error().Err(err).Msgf("Error getting order %d", id)
		}
		return nil, err
	}
	return order, nil
}

// ListOrders returns the orders matching filter, newest first.
func (s *OrderService) ListOrders(ctx context.Context, filter entity.OrderFilter) ([]entity.Order, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *filter.Status)
	}

	var orders []entity.Order
	err := s.store.ExecTx(ctx, func(tx repository.Tx) error {
		var err error
		orders, err = tx.Orders().ListOrders(ctx, filter)
		if err != nil {
			return err
		}
		return attachOrderProducts(ctx, tx.Products(), orders)
	})
	if err != nil {
		logger.Error().Err(err).Msg("Error listing orders")
		return nil, err
	}
	return orders, nil
}

// UpdateOrderStatus writes status and stamps the decision date for accepted,
// rejected and completed. Transitions outside the lifecycle graph are logged,
// or rejected with ErrInvalidTransition when enforcement is on.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id int, status entity.OrderStatus) (*entity.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var updated *entity.Order
	err := s.store.ExecTx(ctx, func(tx repository.Tx) error {
		order, err := tx.Orders().GetOrderByID(ctx, id)
		if err != nil {
			return err
		}

		if order.Status != status && !order.Status.CanTransitionTo(status) {
			if s.enforceTransitions {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
			}
			logger.Warn().Msgf("Order %d moved outside the lifecycle: %s -> %s", id, order.Status, status)
		}

		var decidedAt *time.Time
		if status.IsDecision() {
			now := s.now()
			decidedAt = &now
		}
		if err := tx.Orders().UpdateOrderStatus(ctx, id, status, decidedAt); err != nil {
			return err
		}

		updated, err = tx.Orders().GetOrderByID(ctx, id)
		return err
	})
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, ErrInvalidTransition) {
			logger.Error().Err(err).Msgf("Error updating status of order %d", id)
		}
		return nil, err
	}

	s.publish(ctx, updated, events.OrderStatus)
	return updated, nil
}

// DeleteOrder removes the order and its items. It reports false when the order did not exist.
func (s *OrderService) DeleteOrder(ctx context.Context, id int) (bool, error) {
	var deleted *entity.Order
	err := s.store.ExecTx(ctx, func(tx repository.Tx) error {
		order, err := tx.Orders().GetOrderByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		ok, err := tx.Orders().DeleteOrder(ctx, id)
		if err != nil {
			return err
		}
		if ok {
			deleted = order
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msgf("Error deleting order %d", id)
		return false, err
	}
	if deleted == nil {
		return false, nil
	}

	s.publish(ctx, deleted, events.OrderDeleted)
	return true, nil
}

// Reorder adds every item of order orderID to the user's cart. Stock is checked at the next checkout.
func (s *OrderService) Reorder(ctx context.Context, orderID, userID int) (*entity.ReorderResult, error) {
	var result *entity.ReorderResult
	err := s.store.ExecTx(ctx, func(tx repository.Tx) error {
		order, err := tx.Orders().GetOrderByID(ctx, orderID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if len(order.Items) == 0 {
			return ErrOrderNotFound
		}

		cart, err := tx.Carts().GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		for _, item := range order.Items {
			if _, err := tx.Carts().AddItem(ctx, cart.ID, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		result = &entity.ReorderResult{
			OrderID:    orderID,
			UserID:     userID,
			ItemsAdded: len(order.Items),
			Message:    fmt.Sprintf("Added %d items from order %d to cart", len(order.Items), orderID),
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			logger.Error().Err(err).Msgf("Error reordering order %d for user %d", orderID, userID)
		}
		return nil, err
	}
	return result, nil
}

// GetStats aggregates all orders within one transaction so the figures agree with each other.
func (s *OrderService) GetStats(ctx context.Context) (*entity.OrderStats, error) {
	var stats *entity.OrderStats
	err := s.store.ExecTx(ctx, func(tx repository.Tx) error {
		var err error
		stats, err = tx.Orders().GetStats(ctx)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("Error computing order stats")
		return nil, err
	}
	return stats, nil
}

// publish never fails the caller: the order is already committed.
func (s *OrderService) publish(ctx context.Context, order *entity.Order, event string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderEvent(ctx, order, event); err != nil {
		logger.Error().Err(err).Msgf("Error publishing %s event for order %d", event, order.ID)
	}
}

func (s *OrderService) invalidateProducts(ctx context.Context, ids []int) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		logger.Warn().Err(err).Msgf("Error invalidating cached products %v", ids)
	}
}
