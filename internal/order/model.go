package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/winex/internal/catalog"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

var AllStatuses = []OrderStatus{
	StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled,
}

func (s OrderStatus) String() string {
	return string(s)
}

func ParseStatus(s string) (OrderStatus, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown order status %q", ErrValidation, s)
}

type OrderType string

const (
	TypeDelivery OrderType = "delivery"
	TypePickup   OrderType = "pickup"
)

func ParseType(s string) (OrderType, error) {
	switch t := OrderType(s); t {
	case TypeDelivery, TypePickup:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown order type %q", ErrValidation, s)
	}
}

type Channel string

const (
	ChannelWeb     Channel = "web"
	ChannelKiosk   Channel = "kiosk"
	ChannelCounter Channel = "counter"
)

type PaymentMethod string

const (
	MethodUPI    PaymentMethod = "upi"
	MethodCard   PaymentMethod = "card"
	MethodCash   PaymentMethod = "cash"
	MethodOnline PaymentMethod = "online"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case MethodUPI, MethodCard, MethodCash, MethodOnline:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown payment method %q", ErrValidation, s)
	}
}

// SettlesLater: cash is collected on delivery or at the counter, so nothing is charged up front.
func (m PaymentMethod) SettlesLater() bool {
	return m == MethodCash
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type OrderItem struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrderID   uuid.UUID       `json:"order_id" db:"order_id"`
	Kind      catalog.Kind    `json:"kind" db:"kind"`
	ProductID uuid.NullUUID   `json:"product_id" db:"product_id"`
	ComboID   uuid.NullUUID   `json:"combo_id" db:"combo_id"`
	OfferID   uuid.NullUUID   `json:"offer_id" db:"offer_id"`
	Name      string          `json:"name" db:"name"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Payment struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	OrderID       uuid.UUID       `json:"order_id" db:"order_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Status        PaymentStatus   `json:"status" db:"status"`
	Method        PaymentMethod   `json:"payment_method" db:"payment_method"`
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

type Order struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	UserID          uuid.NullUUID   `json:"user_id" db:"user_id"`
	Phone           string          `json:"phone_number" db:"phone_number"`
	Type            OrderType       `json:"order_type" db:"order_type"`
	Channel         Channel         `json:"channel" db:"channel"`
	DeliveryAddress string          `json:"delivery_address" db:"delivery_address"`
	TokenNumber     string          `json:"token_number,omitempty" db:"token_number"`
	TokenDate       time.Time       `json:"-" db:"token_date"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status          OrderStatus     `json:"status" db:"status"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	OrderItems      []OrderItem     `json:"items"`
	Payment         *Payment        `json:"payment,omitempty"`
}

// Number is the customer-facing order reference, e.g. ORD-1A2B3C4D.
func (o *Order) Number() string {
	return OrderNumber(o.ID)
}

func OrderNumber(id uuid.UUID) string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

func (o *Order) IsActive() bool {
	return o.Status != StatusCompleted && o.Status != StatusCancelled
}
