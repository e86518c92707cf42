package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound    = errors.New("catalog item not found")
	ErrUnavailable = errors.New("catalog item is not available")
	ErrInvalidKind = errors.New("invalid catalog item kind")
)

type Kind string

const (
	KindProduct Kind = "product"
	KindCombo   Kind = "combo"
	KindOffer   Kind = "offer"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindProduct, KindCombo, KindOffer:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Ref points at one sellable catalog entry.
type Ref struct {
	Kind Kind
	ID   uuid.UUID
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.ID.String()
}

// Component is the number of units of one product consumed by a single unit of a variant.
type Component struct {
	Product *Product
	PerUnit int
}

// Variant is implemented by *Product, *Combo and *Offer only.
type Variant interface {
	Ref() Ref
	DisplayName() string
	// UnitPrice is the current price of one unit, rounded to cents.
	UnitPrice() decimal.Decimal
	// Components lists the per-unit product consumption, merged by product.
	Components() []Component
	isVariant()
}

func (p *Product) Ref() Ref                   { return Ref{Kind: KindProduct, ID: p.ID} }
func (p *Product) DisplayName() string        { return p.Name }
func (p *Product) UnitPrice() decimal.Decimal { return p.Price.Round(2) }
func (p *Product) Components() []Component    { return []Component{{Product: p, PerUnit: 1}} }
func (*Product) isVariant()                   {}

func (c *Combo) Ref() Ref                   { return Ref{Kind: KindCombo, ID: c.ID} }
func (c *Combo) DisplayName() string        { return c.Name }
func (c *Combo) UnitPrice() decimal.Decimal { return c.DiscountedPrice() }
func (*Combo) isVariant()                   {}

func (c *Combo) Components() []Component {
	var m componentMerger
	for _, item := range c.Items {
		m.add(item.Product, item.Quantity)
	}
	return m.out
}

func (o *Offer) Ref() Ref                   { return Ref{Kind: KindOffer, ID: o.ID} }
func (o *Offer) DisplayName() string        { return o.Title }
func (o *Offer) UnitPrice() decimal.Decimal { return o.TotalDiscountedPrice().Round(2) }
func (*Offer) isVariant()                   {}

// Components of an offer: one unit of every bundled product plus the full
// recipe of every bundled combo.
func (o *Offer) Components() []Component {
	var m componentMerger
	for _, p := range o.Products {
		m.add(p, 1)
	}
	for _, c := range o.Combos {
		for _, item := range c.Items {
			m.add(item.Product, item.Quantity)
		}
	}
	return m.out
}

type componentMerger struct {
	out []Component
	idx map[uuid.UUID]int
}

func (m *componentMerger) add(p *Product, qty int) {
	if m.idx == nil {
		m.idx = make(map[uuid.UUID]int)
	}
	if i, ok := m.idx[p.ID]; ok {
		m.out[i].PerUnit += qty
		return
	}
	m.idx[p.ID] = len(m.out)
	m.out = append(m.out, Component{Product: p, PerUnit: qty})
}

// MaxUnits is the stock ceiling of a variant: how many units current stock can cover.
// A variant with no components is never available.
func MaxUnits(v Variant) int {
	comps := v.Components()
	if len(comps) == 0 {
		return 0
	}
	maxUnits := -1
	for _, c := range comps {
		if c.PerUnit <= 0 {
			continue
		}
		units := c.Product.Stock / c.PerUnit
		if maxUnits < 0 || units < maxUnits {
			maxUnits = units
		}
	}
	if maxUnits < 0 {
		return 0
	}
	return maxUnits
}

// CanHold reports whether qty units of v fit under its stock ceiling.
func CanHold(v Variant, qty int) bool {
	return qty <= MaxUnits(v)
}

// CheckSellable rejects inactive products and combos and offers outside their window.
func CheckSellable(v Variant, now time.Time) error {
	switch v := v.(type) {
	case *Product:
		if !v.IsActive {
			return fmt.Errorf("%w: product %q is inactive", ErrUnavailable, v.Name)
		}
	case *Combo:
		if !v.IsActive {
			return fmt.Errorf("%w: combo %q is inactive", ErrUnavailable, v.Name)
		}
	case *Offer:
		if !v.IsValid(now) {
			return fmt.Errorf("%w: offer %q is not valid at this time", ErrUnavailable, v.Title)
		}
	default:
		return fmt.Errorf("%w: %T", ErrInvalidKind, v)
	}
	return nil
}
