package order

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type ReceiptLine struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Receipt struct {
	Order      *Order          `json:"order"`
	Number     string          `json:"order_number"`
	Lines      []ReceiptLine   `json:"lines"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	ServiceFee decimal.Decimal `json:"service_fee"`
	Total      decimal.Decimal `json:"total"`
	Payment    *Payment        `json:"payment,omitempty"`
}

// BuildReceipt prices the item snapshots. Total is always the stored order total; the fee is
// what remains of it after subtotal and tax.
func BuildReceipt(o *Order, rate decimal.Decimal) *Receipt {
	r := &Receipt{
		Order:   o,
		Number:  o.Number(),
		Lines:   make([]ReceiptLine, 0, len(o.OrderItems)),
		Payment: o.Payment,
	}

	subtotal := decimal.Zero
	for _, item := range o.OrderItems {
		lt := item.LineTotal()
		r.Lines = append(r.Lines, ReceiptLine{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			LineTotal: lt,
		})
		subtotal = subtotal.Add(lt)
	}

	r.Subtotal = subtotal
	r.Tax = subtotal.Mul(rate).Round(2)
	r.Total = o.TotalAmount
	r.ServiceFee = r.Total.Sub(r.Subtotal).Sub(r.Tax)
	if r.ServiceFee.IsNegative() {
		r.ServiceFee = decimal.Zero
	}
	return r
}

func (s *service) Receipt(ctx context.Context, id uuid.UUID) (*Receipt, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return BuildReceipt(o, s.pricing.TaxRate), nil
}
