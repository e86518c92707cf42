package order

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrValidation              = errors.New("validation failed")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrTokensExhausted         = errors.New("could not allocate a free pickup token")
	ErrStockWouldGoNegative    = errors.New("stock would go negative")

	// ErrTokenConflict is returned by Tx.InsertOrder when the pickup token is already taken today.
	ErrTokenConflict = errors.New("pickup token already taken")
)

// InsufficientStockError names the line that cannot be fulfilled and the product that runs short.
type InsufficientStockError struct {
	Item      string
	Product   string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	if e.Item == e.Product {
		return fmt.Sprintf("%s: %q needs %d, only %d left", ErrInsufficientStock, e.Item, e.Requested, e.Available)
	}
	return fmt.Sprintf("%s: %q needs %d of %q, only %d left", ErrInsufficientStock, e.Item, e.Requested, e.Product, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
