package order

import (
	"fmt"
	"time"
)

// allowedTransitions is the single source of truth for status changes.
// completed -> ready and cancelled -> pending exist to undo operator mistakes.
var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPending: {
		StatusPreparing: true,
		StatusCancelled: true,
	},
	StatusPreparing: {
		StatusReady:     true,
		StatusPending:   true,
		StatusCancelled: true,
	},
	StatusReady: {
		StatusCompleted: true,
		StatusPreparing: true,
		StatusCancelled: true,
	},
	StatusCompleted: {
		StatusReady: true,
	},
	StatusCancelled: {
		StatusPending: true,
	},
	StatusConfirmed: {},
}

func CanTransition(from, to OrderStatus) bool {
	return allowedTransitions[from][to]
}

// Transition is the only way to change an order's status after creation.
func (o *Order) Transition(to OrderStatus, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}

// initialStatus: pickup orders go straight to the counter queue, deliveries wait for confirmation.
func initialStatus(t OrderType) OrderStatus {
	if t == TypePickup {
		return StatusPreparing
	}
	return StatusPending
}

// DisplayPriority orders the live counter screen: closest to hand-over first.
func DisplayPriority(s OrderStatus) int {
	switch s {
	case StatusReady:
		return 1
	case StatusPreparing:
		return 2
	case StatusPending:
		return 3
	default:
		return 4
	}
}
