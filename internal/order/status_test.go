package order_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vasiliy-maslov/winex/internal/order"
)

func TestTransitionTable(t *testing.T) {
	allowed := map[order.OrderStatus][]order.OrderStatus{
		order.StatusPending:   {order.StatusPreparing, order.StatusCancelled},
		order.StatusPreparing: {order.StatusReady, order.StatusPending, order.StatusCancelled},
		order.StatusReady:     {order.StatusCompleted, order.StatusPreparing, order.StatusCancelled},
		order.StatusCompleted: {order.StatusReady},
		order.StatusCancelled: {order.StatusPending},
	}

	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	for _, from := range order.AllStatuses {
		for _, to := range order.AllStatuses {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}

			t.Run(string(from)+"_to_"+string(to), func(t *testing.T) {
				assert.Equal(t, want, order.CanTransition(from, to))

				o := &order.Order{Status: from}
				err := o.Transition(to, now)
				if want {
					assert.NoError(t, err)
					assert.Equal(t, to, o.Status)
					assert.Equal(t, now, o.UpdatedAt)
				} else {
					assert.ErrorIs(t, err, order.ErrInvalidStatusTransition)
					assert.Equal(t, from, o.Status)
					assert.True(t, o.UpdatedAt.IsZero())
				}
			})
		}
	}
}

func TestTransition_FulfilmentPath(t *testing.T) {
	o := &order.Order{Status: order.StatusPending}
	now := time.Now()

	assert.ErrorIs(t, o.Transition(order.StatusReady, now), order.ErrInvalidStatusTransition)
	assert.NoError(t, o.Transition(order.StatusPreparing, now))
	assert.NoError(t, o.Transition(order.StatusReady, now))
	assert.NoError(t, o.Transition(order.StatusCompleted, now))
	assert.Equal(t, order.StatusCompleted, o.Status)
}

func TestDisplayPriority(t *testing.T) {
	assert.Equal(t, 1, order.DisplayPriority(order.StatusReady))
	assert.Equal(t, 2, order.DisplayPriority(order.StatusPreparing))
	assert.Equal(t, 3, order.DisplayPriority(order.StatusPending))
	assert.Equal(t, 4, order.DisplayPriority(order.StatusConfirmed))
	assert.Equal(t, 4, order.DisplayPriority(order.StatusCompleted))
}

func TestParseStatus(t *testing.T) {
	s, err := order.ParseStatus("ready")
	assert.NoError(t, err)
	assert.Equal(t, order.StatusReady, s)

	_, err = order.ParseStatus("shipped")
	assert.ErrorIs(t, err, order.ErrValidation)
}
