package order_test

import (
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/vasiliy-maslov/winex/internal/order"
)

func TestRandomToken(t *testing.T) {
	for range 500 {
		token := order.RandomToken()
		assert.True(t, order.IsValidToken(token), "token %q", token)
	}
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "4821", order.NormalizeToken("#4821"))
	assert.Equal(t, "4821", order.NormalizeToken(" 4821 "))
	assert.Equal(t, "4821", order.NormalizeToken("4821"))
}

func TestIsValidToken(t *testing.T) {
	assert.True(t, order.IsValidToken("1000"))
	assert.True(t, order.IsValidToken("9999"))
	assert.False(t, order.IsValidToken("0999"))
	assert.False(t, order.IsValidToken("999"))
	assert.False(t, order.IsValidToken("12a4"))
	assert.False(t, order.IsValidToken(""))
}

func TestOrderNumber(t *testing.T) {
	id := uuid.Must(uuid.FromString("1a2b3c4d-0000-4000-8000-000000000000"))
	assert.Equal(t, "ORD-1A2B3C4D", order.OrderNumber(id))
}
