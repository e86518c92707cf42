package catalog

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryWhisky  Category = "whisky"
	CategoryVodka   Category = "vodka"
	CategoryBeer    Category = "beer"
	CategoryWine    Category = "wine"
	CategoryRum     Category = "rum"
	CategoryGin     Category = "gin"
	CategoryTequila Category = "tequila"
)

func (c Category) String() string {
	return string(c)
}

type StockStatus string

const (
	StockOut StockStatus = "out_of_stock"
	StockLow StockStatus = "low_stock"
	StockIn  StockStatus = "in_stock"
)

// LowStockThreshold: below this many units a product is reported as low stock.
const LowStockThreshold = 10

var hundred = decimal.NewFromInt(100)

type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Category    Category        `json:"category" db:"category"`
	Stock       int             `json:"stock" db:"stock"`
	IsActive    bool            `json:"is_active" db:"is_active"`
}

func (p *Product) InStock() bool {
	return p.Stock > 0
}

func (p *Product) StockStatus() StockStatus {
	switch {
	case p.Stock <= 0:
		return StockOut
	case p.Stock < LowStockThreshold:
		return StockLow
	default:
		return StockIn
	}
}

type ComboItem struct {
	Product  *Product `json:"product"`
	Quantity int      `json:"quantity"`
}

type Combo struct {
	ID                 uuid.UUID       `json:"id"`
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	IsActive           bool            `json:"is_active"`
	Items              []ComboItem     `json:"items"`
}

// TotalPrice is the undiscounted sum of the bundled products.
func (c *Combo) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func (c *Combo) DiscountedPrice() decimal.Decimal {
	return applyDiscount(c.TotalPrice(), c.DiscountPercentage)
}

type OfferType string

const (
	OfferToday    OfferType = "today"
	OfferCombo    OfferType = "combo"
	OfferDiscount OfferType = "discount"
	OfferSpecial  OfferType = "special"
)

type Offer struct {
	ID                 uuid.UUID           `json:"id"`
	Title              string              `json:"title"`
	Description        string              `json:"description"`
	Type               OfferType           `json:"offer_type"`
	Products           []*Product          `json:"products"`
	Combos             []*Combo            `json:"combos"`
	DiscountPercentage decimal.NullDecimal `json:"discount_percentage"`
	StartDate          time.Time           `json:"start_date"`
	EndDate            time.Time           `json:"end_date"`
	IsActive           bool                `json:"is_active"`
	CreatedAt          time.Time           `json:"created_at"`
}

// IsValid reports whether the offer is active and now falls inside [StartDate, EndDate].
func (o *Offer) IsValid(now time.Time) bool {
	return o.IsActive && !now.Before(o.StartDate) && !now.After(o.EndDate)
}

func (o *Offer) TotalOriginalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, p := range o.Products {
		total = total.Add(p.Price)
	}
	for _, c := range o.Combos {
		total = total.Add(c.DiscountedPrice())
	}
	return total
}

func (o *Offer) TotalDiscountedPrice() decimal.Decimal {
	original := o.TotalOriginalPrice()
	if !o.DiscountPercentage.Valid {
		return original
	}
	return applyDiscount(original, o.DiscountPercentage.Decimal)
}

// HasSufficientStock: every bundled product has a unit left and every combo
// can be assembled at least once.
func (o *Offer) HasSufficientStock() bool {
	for _, p := range o.Products {
		if p.Stock < 1 {
			return false
		}
	}
	for _, c := range o.Combos {
		for _, item := range c.Items {
			if item.Product.Stock < item.Quantity {
				return false
			}
		}
	}
	return true
}

func applyDiscount(amount, percentage decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(percentage.Div(hundred))
	return amount.Mul(factor).Round(2)
}

type InventoryStats struct {
	TotalProducts int `json:"total_products" db:"total_products"`
	LowStock      int `json:"low_stock" db:"low_stock"`
	OutOfStock    int `json:"out_of_stock" db:"out_of_stock"`
}

// Shop is the storefront listing shared by the web shop and the kiosk.
type Shop struct {
	Products []*Product `json:"products"`
	Combos   []*Combo   `json:"combos"`
	Offers   []*Offer   `json:"offers"`
}
