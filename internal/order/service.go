package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/winex/internal/cart"
	"github.com/vasiliy-maslov/winex/internal/notify"
	"github.com/vasiliy-maslov/winex/internal/payment"
)

type Service interface {
	Checkout(ctx context.Context, in CheckoutInput) (*Order, error)
	CreateCounterOrder(ctx context.Context, in CounterOrderInput) (*Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to OrderStatus) (*Order, error)
	AnnotateDeliveryAddress(ctx context.Context, id uuid.UUID, address string) error
	Timeline(ctx context.Context, id uuid.UUID) (Timeline, error)
	TrackByToken(ctx context.Context, token string) (Timeline, error)
	Receipt(ctx context.Context, id uuid.UUID) (*Receipt, error)
}

type service struct {
	store    Store
	gateway  payment.Gateway
	notifier notify.Notifier
	pricing  cart.Pricing

	now      func() time.Time
	tokens   TokenSource
	currency string
	loc      *time.Location
	dispatch func(fn func())
}

type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func WithTokenSource(src TokenSource) Option {
	return func(s *service) { s.tokens = src }
}

func WithCurrency(currency string) Option {
	return func(s *service) { s.currency = currency }
}

// WithLocation sets the time zone whose calendar day scopes pickup tokens.
func WithLocation(loc *time.Location) Option {
	return func(s *service) { s.loc = loc }
}

// WithDispatch sets how post-commit notifications run. The default starts a goroutine per
// message so a slow broker never holds up the response.
func WithDispatch(dispatch func(fn func())) Option {
	return func(s *service) { s.dispatch = dispatch }
}

func NewService(store Store, gateway payment.Gateway, notifier notify.Notifier, pricing cart.Pricing, opts ...Option) Service {
	s := &service{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		pricing:  pricing,
		now:      func() time.Time { return time.Now().UTC() },
		tokens:   RandomToken,
		currency: "INR",
		loc:      time.UTC,
		dispatch: func(fn func()) { go fn() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	return o, nil
}

func (s *service) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}
	return orders, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, to OrderStatus) (*Order, error) {
	if _, err := ParseStatus(string(to)); err != nil {
		return nil, err
	}

	var updated *Order
	var from OrderStatus
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = o.Status
		if err := o.Transition(to, s.now()); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, o, from); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			log.Warn().Stringer("order_id", id).Stringer("new_status", to).Msg("service: order not found, cannot update status")
			return nil, ErrOrderNotFound
		case errors.Is(err, ErrInvalidStatusTransition):
			log.Warn().Err(err).Stringer("order_id", id).Stringer("current_status", from).Stringer("new_status", to).Msg("service: invalid status transition attempt")
			return nil, err
		default:
			log.Error().Err(err).Stringer("order_id", id).Stringer("new_status", to).Msg("service: failed to update order status")
			return nil, fmt.Errorf("service: failed to update order status: %w", err)
		}
	}

	log.Info().Stringer("order_id", id).Stringer("old_status", from).Stringer("new_status", to).Msg("service: order status updated successfully")

	if to == StatusReady && updated.Type == TypePickup {
		s.notifyAsync(ctx, updated.Phone, notify.TemplateOrderReady, map[string]string{
			"order_number": updated.Number(),
			"token_number": updated.TokenNumber,
		})
	}
	return updated, nil
}

func (s *service) AnnotateDeliveryAddress(ctx context.Context, id uuid.UUID, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return validationError("delivery address cannot be empty")
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.UpdateDeliveryAddress(ctx, id, address, s.now())
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", id).Msg("service: order not found, cannot annotate address")
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to annotate delivery address")
		return fmt.Errorf("service: failed to annotate delivery address: %w", err)
	}
	return nil
}

func (s *service) Timeline(ctx context.Context, id uuid.UUID) (Timeline, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return Timeline{}, err
	}
	return BuildTimeline(o), nil
}

func (s *service) TrackByToken(ctx context.Context, token string) (Timeline, error) {
	token = NormalizeToken(token)
	if !IsValidToken(token) {
		return Timeline{}, validationError("token %q is not a 4-digit pickup token", token)
	}

	o, err := s.store.FindPickupByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Str("token", token).Msg("service: no pickup order for token")
			return Timeline{}, ErrOrderNotFound
		}
		log.Error().Err(err).Str("token", token).Msg("service: failed to look up order by token")
		return Timeline{}, fmt.Errorf("service: failed to look up order by token: %w", err)
	}
	return BuildTimeline(o), nil
}

func (s *service) notifyPlaced(ctx context.Context, o *Order) {
	params := map[string]string{
		"order_number": o.Number(),
		"total":        o.TotalAmount.StringFixed(2),
		"status":       string(o.Status),
	}
	if o.TokenNumber != "" {
		params["token_number"] = o.TokenNumber
	}
	recipient := o.Phone
	if recipient == kioskPhone {
		recipient = ""
	}
	s.notifyAsync(ctx, recipient, notify.TemplateOrderPlaced, params)
}

// notifyAsync hands a best-effort message to the dispatcher, detached from the request context.
func (s *service) notifyAsync(ctx context.Context, recipient, template string, params map[string]string) {
	detached := context.WithoutCancel(ctx)
	s.dispatch(func() {
		notify.BestEffort(detached, s.notifier, recipient, template, params)
	})
}
