package dashboard

import (
	"errors"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/winex/internal/catalog"
	"github.com/vasiliy-maslov/winex/internal/order"
)

var ErrInvalidFilter = errors.New("invalid dashboard filter")

// RevenueStatuses are the statuses whose orders count as earned money.
var RevenueStatuses = []order.OrderStatus{order.StatusCompleted, order.StatusReady}

// Range is the half-open interval [From, To).
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r Range) Valid() bool {
	return r.From.Before(r.To)
}

type StatusCounts map[order.OrderStatus]int

func (c StatusCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

type statusCountRow struct {
	Status order.OrderStatus `db:"status"`
	Count  int               `db:"count"`
}

type TopProduct struct {
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	Name      string          `json:"name" db:"name"`
	Quantity  int             `json:"total_quantity" db:"total_quantity"`
	Revenue   decimal.Decimal `json:"revenue" db:"revenue"`
}

type DisplayItem struct {
	OrderID  uuid.UUID `json:"-" db:"order_id"`
	Name     string    `json:"name" db:"name"`
	Quantity int       `json:"quantity" db:"quantity"`
}

type DisplayOrder struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	Number      string            `json:"order_number" db:"-"`
	TokenNumber string            `json:"token_number" db:"token_number"`
	Type        order.OrderType   `json:"order_type" db:"order_type"`
	Status      order.OrderStatus `json:"status" db:"status"`
	Phone       string            `json:"phone_number" db:"phone_number"`
	Total       decimal.Decimal   `json:"total_amount" db:"total_amount"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	Items       []DisplayItem     `json:"items" db:"-"`
}

// LiveDisplay is what the in-store screen shows: active orders closest to hand-over first.
type LiveDisplay struct {
	Orders         []DisplayOrder `json:"orders"`
	ReadyCount     int            `json:"ready_count"`
	PreparingCount int            `json:"preparing_count"`
	PendingCount   int            `json:"pending_count"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

type DailySales struct {
	Date    time.Time       `json:"date" db:"day"`
	Revenue decimal.Decimal `json:"revenue" db:"revenue"`
	Orders  int             `json:"orders" db:"orders"`
}

type SalesReport struct {
	Range        Range           `json:"range"`
	Days         []DailySales    `json:"days"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalOrders  int             `json:"total_orders"`
}

type TodayReport struct {
	Date              time.Time       `json:"date"`
	Orders            int             `json:"orders"`
	Revenue           decimal.Decimal `json:"revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	ByStatus          StatusCounts    `json:"by_status"`
}

type DatePreset string

const (
	PresetToday     DatePreset = "today"
	PresetYesterday DatePreset = "yesterday"
	PresetWeek      DatePreset = "week"
	PresetMonth     DatePreset = "month"
)

const (
	DefaultPageLimit = 12
	MaxPageLimit     = 100
	// MaxPage keeps (page-1)*limit from overflowing.
	MaxPage = 100_000
)

// NewOrdersWindow is how far back the staff poll looks when it does not say.
const NewOrdersWindow = time.Minute

type NewOrders struct {
	Count int       `json:"new_orders"`
	Since time.Time `json:"since"`
}

type OrderFilter struct {
	Status order.OrderStatus
	Type   order.OrderType
	Preset DatePreset
	Range  *Range
	// Search matches a phone prefix, a pickup token or an order number prefix.
	Search string
	Page   int
	Limit  int
}

type OrderRow struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	Number      string            `json:"order_number" db:"-"`
	Phone       string            `json:"phone_number" db:"phone_number"`
	Type        order.OrderType   `json:"order_type" db:"order_type"`
	Channel     order.Channel     `json:"channel" db:"channel"`
	Status      order.OrderStatus `json:"status" db:"status"`
	TokenNumber string            `json:"token_number" db:"token_number"`
	Total       decimal.Decimal   `json:"total_amount" db:"total_amount"`
	ItemCount   int               `json:"item_count" db:"item_count"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
}

type OrderPage struct {
	Orders []OrderRow `json:"orders"`
	Total  int        `json:"total"`
	Page   int        `json:"page"`
	Limit  int        `json:"limit"`
	Pages  int        `json:"pages"`
}

type Overview struct {
	StatusCounts StatusCounts           `json:"status_counts"`
	TotalOrders  int                    `json:"total_orders"`
	WeekRevenue  decimal.Decimal        `json:"week_revenue"`
	TopProducts  []TopProduct           `json:"top_products"`
	Inventory    catalog.InventoryStats `json:"inventory"`
	RecentOrders []OrderRow             `json:"recent_orders"`
}
