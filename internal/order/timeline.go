package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type TimelineStep struct {
	Key         string     `json:"key"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	Current     bool       `json:"current"`
	Time        *time.Time `json:"time,omitempty"`
}

type Timeline struct {
	OrderID   uuid.UUID      `json:"order_id"`
	Number    string         `json:"order_number"`
	Type      OrderType      `json:"order_type"`
	Status    OrderStatus    `json:"status"`
	Token     string         `json:"token_number,omitempty"`
	Cancelled bool           `json:"cancelled"`
	Steps     []TimelineStep `json:"steps"`
}

type stepDef struct {
	key, title, description string
	status                  OrderStatus
}

var commonSteps = []stepDef{
	{key: "pending", title: "Order Placed", description: "Your order has been received", status: StatusPending},
	{key: "confirmed", title: "Order Confirmed", description: "We've confirmed your order", status: StatusConfirmed},
	{key: "preparing", title: "Preparing", description: "Your items are being packed", status: StatusPreparing},
}

var pickupSteps = append(append([]stepDef{}, commonSteps...),
	stepDef{key: "ready", title: "Ready for Pickup", description: "Your order is ready at the counter", status: StatusReady},
	stepDef{key: "completed", title: "Picked Up", description: "Order collected successfully", status: StatusCompleted},
)

// Delivery orders persist ready/completed; customers see them as out for delivery/delivered.
var deliverySteps = append(append([]stepDef{}, commonSteps...),
	stepDef{key: "out_for_delivery", title: "Out for Delivery", description: "Your order is on the way", status: StatusReady},
	stepDef{key: "delivered", title: "Delivered", description: "Order delivered successfully", status: StatusCompleted},
)

// BuildTimeline derives the customer-facing progress view from the stored status. Nothing is persisted.
func BuildTimeline(o *Order) Timeline {
	defs := pickupSteps
	if o.Type == TypeDelivery {
		defs = deliverySteps
	}

	t := Timeline{
		OrderID:   o.ID,
		Number:    o.Number(),
		Type:      o.Type,
		Status:    o.Status,
		Token:     o.TokenNumber,
		Cancelled: o.Status == StatusCancelled,
		Steps:     make([]TimelineStep, len(defs)),
	}

	current := -1
	if !t.Cancelled {
		for i, d := range defs {
			if d.status == o.Status {
				current = i
				break
			}
		}
	}

	for i, d := range defs {
		step := TimelineStep{
			Key:         d.key,
			Title:       d.title,
			Description: d.description,
			Completed:   current >= 0 && i < current,
			Current:     i == current,
		}
		if i == 0 && !t.Cancelled {
			created := o.CreatedAt
			step.Time = &created
		}
		if i == current && current > 0 {
			updated := o.UpdatedAt
			step.Time = &updated
		}
		t.Steps[i] = step
	}
	return t
}
