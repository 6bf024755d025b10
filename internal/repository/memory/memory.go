// Package memory is an in-process repository.Store. Transactions are serialised
// by a single mutex and applied copy-on-write, so a failed transaction leaves no trace.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"webshop-service/internal/entity"
	"webshop-service/internal/repository"
)

type state struct {
	products  map[int]entity.Product
	carts     map[int]entity.Cart // keyed by cart id, Items unused
	cartItems map[int]entity.CartItem
	orders    map[int]entity.Order

	nextProductID  int
	nextCartID     int
	nextCartItemID int
	nextOrderID    int
	nextOrderItem  int
}

func newState() *state {
	return &state{
		products:  map[int]entity.Product{},
		carts:     map[int]entity.Cart{},
		cartItems: map[int]entity.CartItem{},
		orders:    map[int]entity.Order{},
	}
}

func (s *state) clone() *state {
	c := *s
	c.products = make(map[int]entity.Product, len(s.products))
	for k, v := range s.products {
		c.products[k] = v
	}
	c.carts = make(map[int]entity.Cart, len(s.carts))
	for k, v := range s.carts {
		c.carts[k] = v
	}
	c.cartItems = make(map[int]entity.CartItem, len(s.cartItems))
	for k, v := range s.cartItems {
		c.cartItems[k] = v
	}
	c.orders = make(map[int]entity.Order, len(s.orders))
	for k, v := range s.orders {
		v.Items = append([]entity.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	return &c
}

type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{state: newState(), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Products() repository.ProductStore { return s.autoCommit() }
func (s *Store) Carts() repository.CartStore       { return s.autoCommit() }
func (s *Store) Orders() repository.OrderStore     { return s.autoCommit() }

// autoCommit runs each call as its own transaction.
func (s *Store) autoCommit() *view {
	return &view{store: s}
}

func (s *Store) ExecTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.state.clone()
	if err := fn(&view{store: s, tx: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = working
	return nil
}

// view is either bound to an open transaction (tx != nil) or auto-commits every call.
type view struct {
	store *Store
	tx    *state
}

func (v *view) Products() repository.ProductStore { return v }
func (v *view) Carts() repository.CartStore       { return v }
func (v *view) Orders() repository.OrderStore     { return v }

func (v *view) run(ctx context.Context, fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	return v.store.ExecTx(ctx, func(tx repository.Tx) error {
		return fn(tx.(*view).tx)
	})
}

// Products

func (v *view) GetProducts(ctx context.Context) ([]entity.Product, error) {
	products := []entity.Product{}
	err := v.run(ctx, func(st *state) error {
		for _, p := range st.products {
			products = append(products, p)
		}
		sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
		return nil
	})
	return products, err
}

func (v *view) GetProductByID(ctx context.Context, id int) (*entity.Product, error) {
	var product *entity.Product
	err := v.run(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return repository.ErrNotFound
		}
		product = &p
		return nil
	})
	return product, err
}

func (v *view) GetProductsByIDs(ctx context.Context, ids []int) ([]entity.Product, error) {
	products := []entity.Product{}
	err := v.run(ctx, func(st *state) error {
		seen := map[int]bool{}
		for _, id := range ids {
			if p, ok := st.products[id]; ok && !seen[id] {
				seen[id] = true
				products = append(products, p)
			}
		}
		sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
		return nil
	})
	return products, err
}

func (v *view) GetProductForUpdate(ctx context.Context, id int) (*entity.Product, error) {
	return v.GetProductByID(ctx, id)
}

func (v *view) CreateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	err := v.run(ctx, func(st *state) error {
		st.nextProductID++
		product.ID = st.nextProductID
		st.products[product.ID] = *product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (v *view) UpdateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	var updated entity.Product
	err := v.run(ctx, func(st *state) error {
		current, ok := st.products[product.ID]
		if !ok {
			return repository.ErrNotFound
		}
		current.Name = product.Name
		current.Description = product.Description
		current.ImageURL = product.ImageURL
		current.Price = product.Price
		current.Quantity = product.Quantity
		current.SellerID = product.SellerID
		st.products[product.ID] = current
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (v *view) UpdateProductStatus(ctx context.Context, id int, status entity.ProductStatus) (*entity.Product, error) {
	var updated entity.Product
	err := v.run(ctx, func(st *state) error {
		current, ok := st.products[id]
		if !ok {
			return repository.ErrNotFound
		}
		current.Status = status
		st.products[id] = current
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteProduct mirrors the SQL foreign keys: cart lines cascade, order lines restrict.
func (v *view) DeleteProduct(ctx context.Context, id int) error {
	return v.run(ctx, func(st *state) error {
		if _, ok := st.products[id]; !ok {
			return repository.ErrNotFound
		}
		if st.referenced(id) {
			return repository.ErrReferenced
		}
		for itemID, item := range st.cartItems {
			if item.ProductID == id {
				delete(st.cartItems, itemID)
			}
		}
		delete(st.products, id)
		return nil
	})
}

func (st *state) referenced(productID int) bool {
	for _, order := range st.orders {
		for _, item := range order.Items {
			if item.ProductID == productID {
				return true
			}
		}
	}
	return false
}

func (v *view) IsProductReferenced(ctx context.Context, id int) (bool, error) {
	var referenced bool
	err := v.run(ctx, func(st *state) error {
		referenced = st.referenced(id)
		return nil
	})
	return referenced, err
}

func (v *view) DecrementStock(ctx context.Context, id int, quantity int) error {
	return v.run(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok || p.Quantity < quantity {
			return repository.ErrConflict
		}
		p.Quantity -= quantity
		st.products[id] = p
		return nil
	})
}

// Carts

func (st *state) cartByUser(userID int) (entity.Cart, bool) {
	for _, cart := range st.carts {
		if cart.UserID == userID {
			cart.Items = st.itemsOf(cart.ID)
			return cart, true
		}
	}
	return entity.Cart{}, false
}

func (st *state) itemsOf(cartID int) []entity.CartItem {
	items := []entity.CartItem{}
	for _, item := range st.cartItems {
		if item.CartID == cartID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (st *state) itemFor(cartID, productID int) (entity.CartItem, bool) {
	for _, item := range st.cartItems {
		if item.CartID == cartID && item.ProductID == productID {
			return item, true
		}
	}
	return entity.CartItem{}, false
}

func (v *view) GetCartByUser(ctx context.Context, userID int) (*entity.Cart, error) {
	var cart *entity.Cart
	err := v.run(ctx, func(st *state) error {
		c, ok := st.cartByUser(userID)
		if !ok {
			return repository.ErrNotFound
		}
		cart = &c
		return nil
	})
	return cart, err
}

func (v *view) GetCartForUpdate(ctx context.Context, userID int) (*entity.Cart, error) {
	return v.GetCartByUser(ctx, userID)
}

func (v *view) GetOrCreateCart(ctx context.Context, userID int) (*entity.Cart, error) {
	var cart *entity.Cart
	err := v.run(ctx, func(st *state) error {
		c, ok := st.cartByUser(userID)
		if !ok {
			now := v.store.now()
			st.nextCartID++
			c = entity.Cart{ID: st.nextCartID, UserID: userID, CreatedAt: now, UpdatedAt: now}
			st.carts[c.ID] = c
			c.Items = []entity.CartItem{}
		}
		cart = &c
		return nil
	})
	return cart, err
}

func (v *view) upsertItem(ctx context.Context, cartID, productID int, apply func(current int) int) (*entity.CartItem, error) {
	var saved entity.CartItem
	err := v.run(ctx, func(st *state) error {
		if _, ok := st.carts[cartID]; !ok {
			return repository.ErrNotFound
		}
		if _, ok := st.products[productID]; !ok {
			return repository.ErrNotFound
		}
		item, ok := st.itemFor(cartID, productID)
		if !ok {
			st.nextCartItemID++
			item = entity.CartItem{ID: st.nextCartItemID, CartID: cartID, ProductID: productID}
		}
		item.Quantity = apply(item.Quantity)
		st.cartItems[item.ID] = item
		saved = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (v *view) AddItem(ctx context.Context, cartID, productID, quantity int) (*entity.CartItem, error) {
	return v.upsertItem(ctx, cartID, productID, func(current int) int { return current + quantity })
}

func (v *view) SetItemQuantity(ctx context.Context, cartID, productID, quantity int) (*entity.CartItem, error) {
	return v.upsertItem(ctx, cartID, productID, func(int) int { return quantity })
}

func (v *view) RemoveItem(ctx context.Context, cartID, productID int) (bool, error) {
	var found bool
	err := v.run(ctx, func(st *state) error {
		item, ok := st.itemFor(cartID, productID)
		if ok {
			delete(st.cartItems, item.ID)
		}
		found = ok
		return nil
	})
	return found, err
}

func (v *view) ClearCart(ctx context.Context, cartID int) error {
	return v.run(ctx, func(st *state) error {
		for id, item := range st.cartItems {
			if item.CartID == cartID {
				delete(st.cartItems, id)
			}
		}
		return nil
	})
}

// Orders

func copyOrder(o entity.Order) *entity.Order {
	o.Items = append([]entity.OrderItem{}, o.Items...)
	return &o
}

func (v *view) CreateOrder(ctx context.Context, order *entity.Order) (*entity.Order, error) {
	var saved *entity.Order
	err := v.run(ctx, func(st *state) error {
		for _, item := range order.Items {
			if _, ok := st.products[item.ProductID]; !ok {
				return repository.ErrNotFound
			}
		}
		st.nextOrderID++
		o := *order
		o.ID = st.nextOrderID
		o.Items = make([]entity.OrderItem, len(order.Items))
		for i, item := range order.Items {
			st.nextOrderItem++
			item.ID = st.nextOrderItem
			item.OrderID = o.ID
			o.Items[i] = item
		}
		st.orders[o.ID] = o
		saved = copyOrder(o)
		return nil
	})
	return saved, err
}

func (v *view) GetOrderByID(ctx context.Context, id int) (*entity.Order, error) {
	var order *entity.Order
	err := v.run(ctx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return repository.ErrNotFound
		}
		order = copyOrder(o)
		return nil
	})
	return order, err
}

func (v *view) ListOrders(ctx context.Context, filter entity.OrderFilter) ([]entity.Order, error) {
	orders := []entity.Order{}
	err := v.run(ctx, func(st *state) error {
		for _, o := range st.orders {
			if filter.Status != nil && o.Status != *filter.Status {
				continue
			}
			if filter.Email != "" && o.Email != filter.Email {
				continue
			}
			if filter.AdminID != nil && !st.soldBy(o, *filter.AdminID) {
				continue
			}
			orders = append(orders, *copyOrder(o))
		}
		sort.Slice(orders, func(i, j int) bool {
			if !orders[i].DateCreated.Equal(orders[j].DateCreated) {
				return orders[i].DateCreated.After(orders[j].DateCreated)
			}
			return orders[i].ID > orders[j].ID
		})
		return nil
	})
	return orders, err
}

func (st *state) soldBy(o entity.Order, sellerID int) bool {
	for _, item := range o.Items {
		if p, ok := st.products[item.ProductID]; ok && p.SellerID == sellerID {
			return true
		}
	}
	return false
}

func (v *view) UpdateOrderStatus(ctx context.Context, id int, status entity.OrderStatus, decidedAt *time.Time) error {
	return v.run(ctx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return repository.ErrNotFound
		}
		o.Status = status
		if decidedAt != nil {
			t := *decidedAt
			o.DateDecided = &t
		}
		st.orders[id] = o
		return nil
	})
}

func (v *view) DeleteOrder(ctx context.Context, id int) (bool, error) {
	var deleted bool
	err := v.run(ctx, func(st *state) error {
		_, deleted = st.orders[id]
		delete(st.orders, id)
		return nil
	})
	return deleted, err
}

func (v *view) GetStats(ctx context.Context) (*entity.OrderStats, error) {
	stats := &entity.OrderStats{}
	err := v.run(ctx, func(st *state) error {
		stats.TotalOrders = len(st.orders)
		sold := map[int]int{}
		for _, o := range st.orders {
			stats.TotalRevenue = stats.TotalRevenue.Add(o.Total())
			for _, item := range o.Items {
				stats.TotalItemsSold += item.Quantity
				sold[item.ProductID] += item.Quantity
			}
		}

		bestID, bestQty := 0, 0
		for productID, qty := range sold {
			if qty > bestQty || (qty == bestQty && productID < bestID) {
				bestID, bestQty = productID, qty
			}
		}
		if bestQty > 0 {
			name := st.products[bestID].Name
			stats.BestSeller = &name
			stats.BestSellerQuantity = bestQty
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
