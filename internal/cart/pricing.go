package cart

import (
	"github.com/shopspring/decimal"
)

type Pricing struct {
	TaxRate    decimal.Decimal
	ServiceFee decimal.Decimal
}

func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:    decimal.RequireFromString("0.05"),
		ServiceFee: decimal.RequireFromString("39.00"),
	}
}

type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	ServiceFee decimal.Decimal `json:"service_fee"`
	Total      decimal.Decimal `json:"total"`
}

// Compute prices a set of lines. The service fee applies only to a non-empty cart.
func (p Pricing) Compute(items []*Item) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	return p.FromSubtotal(subtotal, len(items) > 0)
}

func (p Pricing) FromSubtotal(subtotal decimal.Decimal, chargeFee bool) Totals {
	tax := subtotal.Mul(p.TaxRate).Round(2)
	fee := decimal.Zero
	if chargeFee {
		fee = p.ServiceFee.Round(2)
	}
	return Totals{
		Subtotal:   subtotal,
		Tax:        tax,
		ServiceFee: fee,
		Total:      subtotal.Add(tax).Add(fee),
	}
}

type Summary struct {
	Cart      *Cart
	Totals    Totals
	ItemCount int
}

func Summarize(c *Cart, p Pricing) *Summary {
	return &Summary{
		Cart:      c,
		Totals:    p.Compute(c.Items),
		ItemCount: c.ItemCount(),
	}
}
