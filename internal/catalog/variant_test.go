package catalog_test

import (
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/winex/internal/catalog"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newProduct(name, price string, stock int) *catalog.Product {
	return &catalog.Product{
		ID:       uuid.Must(uuid.NewV4()),
		Name:     name,
		Price:    dec(price),
		Category: catalog.CategoryWhisky,
		Stock:    stock,
		IsActive: true,
	}
}

func TestCombo_DiscountedPrice(t *testing.T) {
	whisky := newProduct("Whisky", "1000.00", 10)
	soda := newProduct("Soda", "50.00", 10)
	combo := &catalog.Combo{
		ID:                 uuid.Must(uuid.NewV4()),
		Name:               "Weekend Pack",
		DiscountPercentage: dec("10"),
		IsActive:           true,
		Items: []catalog.ComboItem{
			{Product: whisky, Quantity: 1},
			{Product: soda, Quantity: 2},
		},
	}

	assert.True(t, combo.TotalPrice().Equal(dec("1100.00")))
	assert.True(t, combo.DiscountedPrice().Equal(dec("990.00")), "got %s", combo.DiscountedPrice())
	assert.True(t, combo.UnitPrice().Equal(dec("990.00")))
}

func TestCombo_DiscountedPriceRoundsToCents(t *testing.T) {
	p := newProduct("Beer", "33.33", 10)
	combo := &catalog.Combo{
		DiscountPercentage: dec("12.5"),
		Items:              []catalog.ComboItem{{Product: p, Quantity: 1}},
	}

	// 33.33 * 0.875 = 29.16375
	assert.Equal(t, "29.16", combo.DiscountedPrice().StringFixed(2))
}

func TestOffer_Prices(t *testing.T) {
	gin := newProduct("Gin", "800.00", 5)
	tonic := newProduct("Tonic", "100.00", 5)
	combo := &catalog.Combo{
		DiscountPercentage: dec("50"),
		Items:              []catalog.ComboItem{{Product: tonic, Quantity: 2}},
	}

	offer := &catalog.Offer{
		Title:    "G&T Night",
		Products: []*catalog.Product{gin},
		Combos:   []*catalog.Combo{combo},
	}
	assert.True(t, offer.TotalOriginalPrice().Equal(dec("900.00")))
	assert.True(t, offer.TotalDiscountedPrice().Equal(dec("900.00")), "no discount keeps the original price")

	offer.DiscountPercentage = decimal.NewNullDecimal(dec("20"))
	assert.True(t, offer.TotalDiscountedPrice().Equal(dec("720.00")))
	assert.True(t, offer.UnitPrice().Equal(dec("720.00")))
}

func TestOffer_IsValid(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	offer := &catalog.Offer{
		IsActive:  true,
		StartDate: now.Add(-24 * time.Hour),
		EndDate:   now.Add(24 * time.Hour),
	}

	assert.True(t, offer.IsValid(now))
	assert.True(t, offer.IsValid(offer.StartDate), "window start is inclusive")
	assert.True(t, offer.IsValid(offer.EndDate), "window end is inclusive")
	assert.False(t, offer.IsValid(offer.EndDate.Add(time.Second)))
	assert.False(t, offer.IsValid(offer.StartDate.Add(-time.Second)))

	offer.IsActive = false
	assert.False(t, offer.IsValid(now))
}

func TestOffer_HasSufficientStock(t *testing.T) {
	rum := newProduct("Rum", "500.00", 1)
	cola := newProduct("Cola", "40.00", 3)
	combo := &catalog.Combo{Items: []catalog.ComboItem{{Product: cola, Quantity: 3}}}
	offer := &catalog.Offer{Products: []*catalog.Product{rum}, Combos: []*catalog.Combo{combo}}

	assert.True(t, offer.HasSufficientStock())

	cola.Stock = 2
	assert.False(t, offer.HasSufficientStock())

	cola.Stock = 3
	rum.Stock = 0
	assert.False(t, offer.HasSufficientStock())
}

func TestMaxUnits(t *testing.T) {
	vodka := newProduct("Vodka", "700.00", 7)
	juice := newProduct("Juice", "60.00", 9)

	tests := []struct {
		name    string
		variant catalog.Variant
		want    int
	}{
		{
			name:    "product ceiling is its stock",
			variant: vodka,
			want:    7,
		},
		{
			name: "combo ceiling is the scarcest component",
			variant: &catalog.Combo{Items: []catalog.ComboItem{
				{Product: vodka, Quantity: 2},
				{Product: juice, Quantity: 4},
			}},
			want: 2,
		},
		{
			name: "offer scales bundled products and combo recipes",
			variant: &catalog.Offer{
				Products: []*catalog.Product{vodka},
				Combos: []*catalog.Combo{{Items: []catalog.ComboItem{
					{Product: juice, Quantity: 3},
				}}},
			},
			want: 3,
		},
		{
			name: "offer merges a product used twice",
			variant: &catalog.Offer{
				Products: []*catalog.Product{vodka},
				Combos: []*catalog.Combo{{Items: []catalog.ComboItem{
					{Product: vodka, Quantity: 2},
				}}},
			},
			want: 2,
		},
		{
			name:    "empty offer is never available",
			variant: &catalog.Offer{},
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, catalog.MaxUnits(tt.variant))
			assert.True(t, catalog.CanHold(tt.variant, tt.want))
			assert.False(t, catalog.CanHold(tt.variant, tt.want+1))
		})
	}
}

func TestCheckSellable(t *testing.T) {
	now := time.Now()
	product := newProduct("Wine", "900.00", 3)
	require.NoError(t, catalog.CheckSellable(product, now))

	product.IsActive = false
	err := catalog.CheckSellable(product, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrUnavailable))

	expired := &catalog.Offer{
		Title:     "Last Week",
		IsActive:  true,
		StartDate: now.Add(-7 * 24 * time.Hour),
		EndDate:   now.Add(-time.Hour),
	}
	err = catalog.CheckSellable(expired, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrUnavailable)
}

func TestProduct_StockStatus(t *testing.T) {
	p := newProduct("Tequila", "1200.00", 0)
	assert.Equal(t, catalog.StockOut, p.StockStatus())
	p.Stock = 9
	assert.Equal(t, catalog.StockLow, p.StockStatus())
	p.Stock = 10
	assert.Equal(t, catalog.StockIn, p.StockStatus())
}

func TestParseKind(t *testing.T) {
	k, err := catalog.ParseKind("combo")
	require.NoError(t, err)
	assert.Equal(t, catalog.KindCombo, k)

	_, err = catalog.ParseKind("bundle")
	assert.ErrorIs(t, err, catalog.ErrInvalidKind)
}

func TestVariant_RefAndDisplayName(t *testing.T) {
	p := newProduct("Malbec", "650.00", 4)
	combo := &catalog.Combo{ID: uuid.Must(uuid.NewV4()), Name: "Date Night", Items: []catalog.ComboItem{{Product: p, Quantity: 2}}}
	offer := &catalog.Offer{ID: uuid.Must(uuid.NewV4()), Title: "Friday Special", Products: []*catalog.Product{p}}

	tests := []struct {
		variant  catalog.Variant
		wantRef  catalog.Ref
		wantName string
	}{
		{variant: p, wantRef: catalog.Ref{Kind: catalog.KindProduct, ID: p.ID}, wantName: "Malbec"},
		{variant: combo, wantRef: catalog.Ref{Kind: catalog.KindCombo, ID: combo.ID}, wantName: "Date Night"},
		{variant: offer, wantRef: catalog.Ref{Kind: catalog.KindOffer, ID: offer.ID}, wantName: "Friday Special"},
	}

	for _, tt := range tests {
		t.Run(string(tt.wantRef.Kind), func(t *testing.T) {
			assert.Equal(t, tt.wantRef, tt.variant.Ref())
			assert.Equal(t, tt.wantName, tt.variant.DisplayName())
		})
	}
}
