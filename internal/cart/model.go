package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/winex/internal/catalog"
)

var (
	ErrOutOfStock   = errors.New("out of stock")
	ErrItemNotFound = errors.New("cart item not found")
	ErrInvalidOwner = errors.New("cart owner must be exactly one of user or session")
)

// OutOfStockError is returned when an increment would push a line past its stock ceiling.
type OutOfStockError struct {
	Item      string
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("%s: only %d of %q available", ErrOutOfStock, e.Available, e.Item)
}

func (e *OutOfStockError) Unwrap() error {
	return ErrOutOfStock
}

const kioskSuffix = "_kiosk"

// Owner identifies whose cart it is: a signed-in user or an anonymous session, never both.
type Owner struct {
	UserID     uuid.UUID
	SessionKey string
}

func ForUser(id uuid.UUID) Owner {
	return Owner{UserID: id}
}

func ForSession(key string) Owner {
	return Owner{SessionKey: key}
}

// ForKiosk keys the kiosk cart apart from the web cart of the same session.
func ForKiosk(sessionKey string) Owner {
	return Owner{SessionKey: sessionKey + kioskSuffix}
}

func (o Owner) IsUser() bool {
	return o.UserID != uuid.Nil
}

func (o Owner) Validate() error {
	hasUser := o.UserID != uuid.Nil
	hasSession := o.SessionKey != ""
	if hasUser == hasSession {
		return ErrInvalidOwner
	}
	return nil
}

func (o Owner) String() string {
	if o.IsUser() {
		return "user:" + o.UserID.String()
	}
	return "session:" + o.SessionKey
}

type Item struct {
	ID        uuid.UUID       `json:"id"`
	Variant   catalog.Variant `json:"-"`
	Quantity  int             `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
}

func (i *Item) Name() string {
	return i.Variant.DisplayName()
}

func (i *Item) LineTotal() decimal.Decimal {
	return i.Variant.UnitPrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CanIncrease reports whether the line may grow to newQty under the current stock ceiling.
func (i *Item) CanIncrease(newQty int) bool {
	return catalog.CanHold(i.Variant, newQty)
}

type Cart struct {
	ID        uuid.UUID `json:"id"`
	Owner     Owner     `json:"-"`
	Items     []*Item   `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (c *Cart) Find(ref catalog.Ref) *Item {
	for _, item := range c.Items {
		if item.Variant.Ref() == ref {
			return item
		}
	}
	return nil
}

func (c *Cart) item(id uuid.UUID) (*Item, int, error) {
	for i, item := range c.Items {
		if item.ID == id {
			return item, i, nil
		}
	}
	return nil, -1, fmt.Errorf("%w: %s", ErrItemNotFound, id)
}

// Add puts one unit of v into the cart, merging with an existing line of the same variant.
// The freshly loaded variant of an existing line wins over v.
func (c *Cart) Add(v catalog.Variant, now time.Time) error {
	if existing := c.Find(v.Ref()); existing != nil {
		return c.increase(existing, now)
	}

	if err := catalog.CheckSellable(v, now); err != nil {
		return err
	}
	item := &Item{Variant: v, Quantity: 1, CreatedAt: now}
	if !item.CanIncrease(1) {
		return &OutOfStockError{Item: v.DisplayName(), Available: catalog.MaxUnits(v)}
	}
	c.Items = append(c.Items, item)
	return nil
}

func (c *Cart) Increase(itemID uuid.UUID, now time.Time) error {
	item, _, err := c.item(itemID)
	if err != nil {
		return err
	}
	return c.increase(item, now)
}

func (c *Cart) increase(item *Item, now time.Time) error {
	if err := catalog.CheckSellable(item.Variant, now); err != nil {
		return err
	}
	newQty := item.Quantity + 1
	if !item.CanIncrease(newQty) {
		return &OutOfStockError{Item: item.Name(), Available: catalog.MaxUnits(item.Variant)}
	}
	item.Quantity = newQty
	return nil
}

// Decrease drops one unit; the line disappears when it reaches zero.
func (c *Cart) Decrease(itemID uuid.UUID) error {
	item, idx, err := c.item(itemID)
	if err != nil {
		return err
	}
	if item.Quantity > 1 {
		item.Quantity--
		return nil
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	return nil
}

func (c *Cart) Remove(itemID uuid.UUID) error {
	_, idx, err := c.item(itemID)
	if err != nil {
		return err
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	return nil
}

func (c *Cart) Clear() {
	c.Items = c.Items[:0]
}
