package cart_test

import (
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/winex/internal/cart"
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
		Category: catalog.CategoryWine,
		Stock:    stock,
		IsActive: true,
	}
}

func TestOwner_Validate(t *testing.T) {
	assert.NoError(t, cart.ForUser(uuid.Must(uuid.NewV4())).Validate())
	assert.NoError(t, cart.ForSession("abc").Validate())
	assert.ErrorIs(t, cart.Owner{}.Validate(), cart.ErrInvalidOwner)
	assert.ErrorIs(t, cart.Owner{UserID: uuid.Must(uuid.NewV4()), SessionKey: "abc"}.Validate(), cart.ErrInvalidOwner)
	assert.Equal(t, "abc_kiosk", cart.ForKiosk("abc").SessionKey)
}

func TestCart_AddMergesSameVariant(t *testing.T) {
	now := time.Now()
	p := newProduct("Merlot", "650.00", 5)
	c := &cart.Cart{}

	require.NoError(t, c.Add(p, now))
	require.NoError(t, c.Add(p, now))

	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, 2, c.ItemCount())
}

func TestCart_IncreaseStopsExactlyAtCeiling(t *testing.T) {
	now := time.Now()
	p := newProduct("Shiraz", "700.00", 3)
	c := &cart.Cart{}
	require.NoError(t, c.Add(p, now))
	itemID := uuid.Must(uuid.NewV4())
	c.Items[0].ID = itemID

	require.NoError(t, c.Increase(itemID, now))
	require.NoError(t, c.Increase(itemID, now))
	assert.Equal(t, 3, c.Items[0].Quantity)

	err := c.Increase(itemID, now)
	require.Error(t, err)
	var stockErr *cart.OutOfStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "Shiraz", stockErr.Item)
	assert.Equal(t, 3, stockErr.Available)
	assert.ErrorIs(t, err, cart.ErrOutOfStock)
	assert.Equal(t, 3, c.Items[0].Quantity, "failed increase must not change quantity")
}

func TestCart_AddOutOfStockProduct(t *testing.T) {
	p := newProduct("Sold Out", "100.00", 0)
	c := &cart.Cart{}

	err := c.Add(p, time.Now())
	assert.ErrorIs(t, err, cart.ErrOutOfStock)
	assert.True(t, c.IsEmpty())
}

func TestCart_ComboCeiling(t *testing.T) {
	now := time.Now()
	beer := newProduct("Lager", "120.00", 5)
	combo := &catalog.Combo{
		ID:       uuid.Must(uuid.NewV4()),
		Name:     "Six Pack",
		IsActive: true,
		Items:    []catalog.ComboItem{{Product: beer, Quantity: 2}},
	}
	c := &cart.Cart{}

	require.NoError(t, c.Add(combo, now))
	require.NoError(t, c.Add(combo, now))
	err := c.Add(combo, now)

	var stockErr *cart.OutOfStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 2, c.Items[0].Quantity)
}

func TestCart_ExpiredOfferRejected(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	offer := &catalog.Offer{
		ID:        uuid.Must(uuid.NewV4()),
		Title:     "Summer Sale",
		IsActive:  true,
		Products:  []*catalog.Product{newProduct("Rosé", "500.00", 10)},
		StartDate: now.Add(-24 * time.Hour),
		EndDate:   now.Add(24 * time.Hour),
	}
	c := &cart.Cart{}

	require.NoError(t, c.Add(offer, now))

	later := offer.EndDate.Add(time.Minute)
	err := c.Add(offer, later)
	assert.ErrorIs(t, err, catalog.ErrUnavailable)
	assert.Equal(t, 1, c.Items[0].Quantity)

	fresh := &cart.Cart{}
	assert.ErrorIs(t, fresh.Add(offer, later), catalog.ErrUnavailable)
	assert.True(t, fresh.IsEmpty())
}

func TestCart_OfferCeilingScalesWithQuantity(t *testing.T) {
	now := time.Now()
	p := newProduct("Prosecco", "900.00", 2)
	offer := &catalog.Offer{
		ID:        uuid.Must(uuid.NewV4()),
		Title:     "Bubbles",
		IsActive:  true,
		Products:  []*catalog.Product{p},
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(time.Hour),
	}
	c := &cart.Cart{}

	require.NoError(t, c.Add(offer, now))
	require.NoError(t, c.Add(offer, now))
	assert.ErrorIs(t, c.Add(offer, now), cart.ErrOutOfStock)
}

func TestCart_DecreaseAndRemove(t *testing.T) {
	now := time.Now()
	a := newProduct("Cabernet", "800.00", 10)
	b := newProduct("Pinot", "900.00", 10)
	c := &cart.Cart{}
	require.NoError(t, c.Add(a, now))
	require.NoError(t, c.Add(a, now))
	require.NoError(t, c.Add(b, now))
	idA, idB := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	c.Items[0].ID, c.Items[1].ID = idA, idB

	require.NoError(t, c.Decrease(idA))
	assert.Equal(t, 1, c.Items[0].Quantity)

	require.NoError(t, c.Decrease(idA))
	require.Len(t, c.Items, 1, "decreasing to zero deletes the line")
	assert.Equal(t, idB, c.Items[0].ID)

	require.NoError(t, c.Remove(idB))
	assert.True(t, c.IsEmpty())

	assert.ErrorIs(t, c.Remove(idB), cart.ErrItemNotFound)
	assert.ErrorIs(t, c.Decrease(uuid.Must(uuid.NewV4())), cart.ErrItemNotFound)
}

func TestItem_LineTotalPerVariant(t *testing.T) {
	p := newProduct("Vodka", "450.00", 10)
	combo := &catalog.Combo{
		DiscountPercentage: dec("10"),
		Items:              []catalog.ComboItem{{Product: p, Quantity: 2}},
	}
	offer := &catalog.Offer{
		Products:           []*catalog.Product{p},
		DiscountPercentage: decimal.NewNullDecimal(dec("20")),
	}

	tests := []struct {
		name string
		item *cart.Item
		want string
	}{
		{name: "product", item: &cart.Item{Variant: p, Quantity: 3}, want: "1350.00"},
		{name: "combo", item: &cart.Item{Variant: combo, Quantity: 2}, want: "1620.00"},
		{name: "offer", item: &cart.Item{Variant: offer, Quantity: 2}, want: "720.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.LineTotal().StringFixed(2))
		})
	}
}
