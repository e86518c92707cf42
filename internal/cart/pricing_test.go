package cart_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/winex/internal/cart"
)

func TestPricing_SingleProductScenario(t *testing.T) {
	p := newProduct("House Red", "100.00", 1)
	items := []*cart.Item{{Variant: p, Quantity: 1}}

	totals := cart.DefaultPricing().Compute(items)

	got := map[string]string{
		"subtotal":    totals.Subtotal.StringFixed(2),
		"tax":         totals.Tax.StringFixed(2),
		"service_fee": totals.ServiceFee.StringFixed(2),
		"total":       totals.Total.StringFixed(2),
	}
	want := map[string]string{
		"subtotal":    "100.00",
		"tax":         "5.00",
		"service_fee": "39.00",
		"total":       "144.00",
	}
	require.Empty(t, cmp.Diff(want, got))
}

func TestPricing_TaxRoundsToCents(t *testing.T) {
	p := newProduct("Craft Beer", "33.33", 10)
	totals := cart.DefaultPricing().Compute([]*cart.Item{{Variant: p, Quantity: 1}})

	// 33.33 * 0.05 = 1.6665
	assert.Equal(t, "1.67", totals.Tax.StringFixed(2))
	assert.Equal(t, "74.00", totals.Total.StringFixed(2))
}

func TestPricing_EmptyCartHasNoFee(t *testing.T) {
	totals := cart.DefaultPricing().Compute(nil)
	assert.True(t, totals.Total.IsZero())
	assert.True(t, totals.ServiceFee.IsZero())
}

func TestSummarize(t *testing.T) {
	a := newProduct("A", "10.00", 10)
	b := newProduct("B", "20.00", 10)
	c := &cart.Cart{Items: []*cart.Item{{Variant: a, Quantity: 2}, {Variant: b, Quantity: 1}}}

	summary := cart.Summarize(c, cart.DefaultPricing())
	assert.Equal(t, 3, summary.ItemCount)
	assert.Equal(t, "40.00", summary.Totals.Subtotal.StringFixed(2))
	assert.Equal(t, "2.00", summary.Totals.Tax.StringFixed(2))
	assert.Equal(t, "81.00", summary.Totals.Total.StringFixed(2))
}
