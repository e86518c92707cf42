package order

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/winex/internal/cart"
	"github.com/vasiliy-maslov/winex/internal/catalog"
)

// Store is the persistence boundary of the order pipeline.
type Store interface {
	// WithinTx runs fn in one database transaction; any error from fn rolls everything back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	// FindPickupByToken returns the most recent pickup order carrying token.
	FindPickupByToken(ctx context.Context, token string) (*Order, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
}

// Tx is the set of writes checkout and status changes perform inside one transaction.
type Tx interface {
	// LoadCart reads the owner's cart with the cart row and every consumed product locked.
	LoadCart(ctx context.Context, owner cart.Owner) (*cart.Cart, error)
	// LoadVariants hydrates refs with product rows locked in id order.
	LoadVariants(ctx context.Context, refs []catalog.Ref) (map[catalog.Ref]catalog.Variant, error)
	TokenInUse(ctx context.Context, day time.Time, token string) (bool, error)
	// InsertOrder writes the order and its items. A taken pickup token yields ErrTokenConflict
	// and leaves the transaction usable.
	InsertOrder(ctx context.Context, o *Order) error
	// DecrementStock fails with ErrStockWouldGoNegative instead of going below zero.
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) error
	InsertPayment(ctx context.Context, p *Payment) error
	ClearCart(ctx context.Context, cartID uuid.UUID) error

	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)
	// UpdateStatus persists o.Status and appends a status log entry.
	UpdateStatus(ctx context.Context, o *Order, from OrderStatus) error
	UpdateDeliveryAddress(ctx context.Context, id uuid.UUID, address string, now time.Time) error
}
