package order_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/winex/internal/cart"
	"github.com/vasiliy-maslov/winex/internal/catalog"
	"github.com/vasiliy-maslov/winex/internal/order"
)

// fakeStore keeps everything in memory and restores a snapshot when a transaction fails,
// so tests can observe rollback the way Postgres would provide it.
type fakeStore struct {
	mu sync.Mutex

	products map[uuid.UUID]*catalog.Product
	variants map[catalog.Ref]catalog.Variant
	carts    map[string]*cart.Cart
	orders   []*order.Order
	payments []*order.Payment
	statuses []statusChange

	// raceTokens makes InsertOrder report a unique-index race on these tokens once.
	raceTokens map[string]bool
	clearErr   error
}

type statusChange struct {
	orderID  uuid.UUID
	from, to order.OrderStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:   make(map[uuid.UUID]*catalog.Product),
		variants:   make(map[catalog.Ref]catalog.Variant),
		carts:      make(map[string]*cart.Cart),
		raceTokens: make(map[string]bool),
	}
}

func (f *fakeStore) addProduct(p *catalog.Product) *catalog.Product {
	f.products[p.ID] = p
	f.variants[p.Ref()] = p
	return p
}

func (f *fakeStore) addVariant(v catalog.Variant) {
	f.variants[v.Ref()] = v
}

func (f *fakeStore) putInCart(owner cart.Owner, v catalog.Variant, qty int) {
	c, ok := f.carts[owner.String()]
	if !ok {
		c = &cart.Cart{ID: uuid.Must(uuid.NewV4()), Owner: owner}
		f.carts[owner.String()] = c
	}
	c.Items = append(c.Items, &cart.Item{ID: uuid.Must(uuid.NewV4()), Variant: v, Quantity: qty})
}

func (f *fakeStore) cartSize(owner cart.Owner) int {
	c, ok := f.carts[owner.String()]
	if !ok {
		return 0
	}
	return len(c.Items)
}

type snapshot struct {
	stock    map[uuid.UUID]int
	carts    map[string][]*cart.Item
	orders   int
	payments int
	statuses int
	order    map[uuid.UUID]order.Order
}

func (f *fakeStore) snapshot() snapshot {
	s := snapshot{
		stock: make(map[uuid.UUID]int, len(f.products)),
		carts: make(map[string][]*cart.Item, len(f.carts)),
		order: make(map[uuid.UUID]order.Order, len(f.orders)),
	}
	for id, p := range f.products {
		s.stock[id] = p.Stock
	}
	for k, c := range f.carts {
		s.carts[k] = append([]*cart.Item(nil), c.Items...)
	}
	for _, o := range f.orders {
		s.order[o.ID] = *o
	}
	s.orders, s.payments, s.statuses = len(f.orders), len(f.payments), len(f.statuses)
	return s
}

func (f *fakeStore) restore(s snapshot) {
	for id, stock := range s.stock {
		f.products[id].Stock = stock
	}
	for k, items := range s.carts {
		f.carts[k].Items = items
	}
	f.orders = f.orders[:s.orders]
	f.payments = f.payments[:s.payments]
	f.statuses = f.statuses[:s.statuses]
	for _, o := range f.orders {
		*o = s.order[o.ID]
	}
}

func (f *fakeStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := f.snapshot()
	if err := fn(ctx, f); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func (f *fakeStore) GetOrder(_ context.Context, id uuid.UUID) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(id)
}

func (f *fakeStore) find(id uuid.UUID) (*order.Order, error) {
	for _, o := range f.orders {
		if o.ID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (f *fakeStore) FindPickupByToken(_ context.Context, token string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.orders) - 1; i >= 0; i-- {
		if o := f.orders[i]; o.Type == order.TypePickup && o.TokenNumber == token {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (f *fakeStore) ListByUser(_ context.Context, userID uuid.UUID) ([]order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]order.Order, 0)
	for _, o := range f.orders {
		if o.UserID.Valid && o.UserID.UUID == userID {
			out = append(out, *o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) LoadCart(_ context.Context, owner cart.Owner) (*cart.Cart, error) {
	c, ok := f.carts[owner.String()]
	if !ok {
		return &cart.Cart{Owner: owner, Items: make([]*cart.Item, 0)}, nil
	}
	return &cart.Cart{ID: c.ID, Owner: owner, Items: append([]*cart.Item(nil), c.Items...)}, nil
}

func (f *fakeStore) LoadVariants(_ context.Context, refs []catalog.Ref) (map[catalog.Ref]catalog.Variant, error) {
	out := make(map[catalog.Ref]catalog.Variant, len(refs))
	for _, ref := range refs {
		if v, ok := f.variants[ref]; ok {
			out[ref] = v
		}
	}
	return out, nil
}

func (f *fakeStore) TokenInUse(_ context.Context, day time.Time, token string) (bool, error) {
	for _, o := range f.orders {
		if o.Type == order.TypePickup && o.TokenNumber == token && o.TokenDate.Equal(day) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertOrder(_ context.Context, o *order.Order) error {
	if f.raceTokens[o.TokenNumber] {
		delete(f.raceTokens, o.TokenNumber)
		return order.ErrTokenConflict
	}
	cp := *o
	cp.OrderItems = append([]order.OrderItem(nil), o.OrderItems...)
	f.orders = append(f.orders, &cp)
	return nil
}

func (f *fakeStore) DecrementStock(_ context.Context, productID uuid.UUID, qty int) error {
	p, ok := f.products[productID]
	if !ok || p.Stock < qty {
		return order.ErrStockWouldGoNegative
	}
	p.Stock -= qty
	return nil
}

func (f *fakeStore) InsertPayment(_ context.Context, p *order.Payment) error {
	cp := *p
	f.payments = append(f.payments, &cp)
	for _, o := range f.orders {
		if o.ID == p.OrderID {
			o.Payment = &cp
		}
	}
	return nil
}

func (f *fakeStore) ClearCart(_ context.Context, cartID uuid.UUID) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	for _, c := range f.carts {
		if c.ID == cartID {
			c.Items = nil
		}
	}
	return nil
}

func (f *fakeStore) GetOrderForUpdate(_ context.Context, id uuid.UUID) (*order.Order, error) {
	return f.find(id)
}

func (f *fakeStore) UpdateStatus(_ context.Context, o *order.Order, from order.OrderStatus) error {
	for _, stored := range f.orders {
		if stored.ID == o.ID {
			stored.Status = o.Status
			stored.UpdatedAt = o.UpdatedAt
			f.statuses = append(f.statuses, statusChange{orderID: o.ID, from: from, to: o.Status})
			return nil
		}
	}
	return order.ErrOrderNotFound
}

func (f *fakeStore) UpdateDeliveryAddress(_ context.Context, id uuid.UUID, address string, now time.Time) error {
	for _, stored := range f.orders {
		if stored.ID == id {
			stored.DeliveryAddress = address
			stored.UpdatedAt = now
			return nil
		}
	}
	return order.ErrOrderNotFound
}
