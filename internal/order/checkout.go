package order

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/winex/internal/cart"
	"github.com/vasiliy-maslov/winex/internal/catalog"
	"github.com/vasiliy-maslov/winex/internal/payment"
)

const kioskPhone = "0000000000"

type CheckoutInput struct {
	Owner           cart.Owner
	Channel         Channel
	Phone           string
	Type            OrderType
	DeliveryAddress string
	PaymentMethod   PaymentMethod
	// PaymentReference is a transaction id the client already obtained (kiosk terminals).
	PaymentReference string
}

type CounterLine struct {
	Ref      catalog.Ref
	Quantity int
}

// CounterOrderInput is a walk-in sale keyed in by staff. Prices always come from the catalog.
type CounterOrderInput struct {
	CustomerName    string
	Phone           string
	Type            OrderType
	DeliveryAddress string
	PaymentMethod   PaymentMethod
	Status          OrderStatus
	Lines           []CounterLine
}

type line struct {
	variant catalog.Variant
	qty     int
}

type draft struct {
	userID    uuid.NullUUID
	phone     string
	typ       OrderType
	channel   Channel
	address   string
	method    PaymentMethod
	reference string
	status    OrderStatus
}

func (in *CheckoutInput) normalize() (draft, error) {
	if err := in.Owner.Validate(); err != nil {
		return draft{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if in.Channel == "" {
		in.Channel = ChannelWeb
	}

	d := draft{
		phone:     strings.TrimSpace(in.Phone),
		typ:       in.Type,
		channel:   in.Channel,
		address:   strings.TrimSpace(in.DeliveryAddress),
		method:    in.PaymentMethod,
		reference: strings.TrimSpace(in.PaymentReference),
	}
	if in.Owner.IsUser() {
		d.userID = uuid.NullUUID{UUID: in.Owner.UserID, Valid: true}
	}

	switch in.Channel {
	case ChannelKiosk:
		d.typ = TypePickup
		d.method = MethodOnline
		d.address = ""
		if d.phone == "" {
			d.phone = kioskPhone
		}
	case ChannelWeb:
		if d.phone == "" {
			return draft{}, validationError("phone number is required")
		}
		if d.reference != "" {
			return draft{}, validationError("payment reference is only accepted from kiosks")
		}
	default:
		return draft{}, validationError("channel %q cannot check out a cart", in.Channel)
	}

	if _, err := ParseType(string(d.typ)); err != nil {
		return draft{}, err
	}
	if _, err := ParsePaymentMethod(string(d.method)); err != nil {
		return draft{}, err
	}
	if err := d.checkAddress(); err != nil {
		return draft{}, err
	}
	d.status = initialStatus(d.typ)
	return d, nil
}

func (in *CounterOrderInput) normalize() (draft, error) {
	d := draft{
		phone:   strings.TrimSpace(in.Phone),
		typ:     in.Type,
		channel: ChannelCounter,
		address: strings.TrimSpace(in.DeliveryAddress),
		method:  in.PaymentMethod,
		status:  in.Status,
	}
	if d.typ == "" {
		d.typ = TypePickup
	}
	if d.method == "" {
		d.method = MethodCash
	}
	if d.status == "" {
		d.status = StatusCompleted
	}

	if _, err := ParseType(string(d.typ)); err != nil {
		return draft{}, err
	}
	if _, err := ParsePaymentMethod(string(d.method)); err != nil {
		return draft{}, err
	}
	if _, err := ParseStatus(string(d.status)); err != nil {
		return draft{}, err
	}
	if name := strings.TrimSpace(in.CustomerName); name != "" && d.typ == TypePickup && d.address == "" {
		d.address = "Customer: " + name
	}
	if err := d.checkAddress(); err != nil {
		return draft{}, err
	}
	if len(in.Lines) == 0 {
		return draft{}, validationError("order must contain at least one item")
	}
	for _, l := range in.Lines {
		if l.Quantity < 1 {
			return draft{}, validationError("quantity for %s must be at least 1", l.Ref)
		}
	}
	return d, nil
}

func (d draft) checkAddress() error {
	if d.typ == TypeDelivery && d.address == "" {
		return validationError("delivery address is required for delivery orders")
	}
	return nil
}

// Checkout turns the owner's cart into an order. Stock, order, payment and the emptied cart
// are committed together or not at all.
func (s *service) Checkout(ctx context.Context, in CheckoutInput) (*Order, error) {
	d, err := in.normalize()
	if err != nil {
		log.Warn().Err(err).Str("owner", in.Owner.String()).Msg("service: rejected checkout input")
		return nil, err
	}

	var placed *Order
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		c, err := tx.LoadCart(ctx, in.Owner)
		if err != nil {
			return err
		}
		if c.IsEmpty() {
			return validationError("cart is empty")
		}

		lines := make([]line, 0, len(c.Items))
		for _, item := range c.Items {
			lines = append(lines, line{variant: item.Variant, qty: item.Quantity})
		}

		o, err := s.place(ctx, tx, d, lines)
		if err != nil {
			return err
		}
		if err := tx.ClearCart(ctx, c.ID); err != nil {
			return err
		}
		placed = o
		return nil
	})
	if err != nil {
		s.logPlaceFailure(err, "checkout", in.Owner.String())
		return nil, fmt.Errorf("service: checkout failed: %w", err)
	}

	log.Info().
		Stringer("order_id", placed.ID).
		Str("channel", string(placed.Channel)).
		Str("token", placed.TokenNumber).
		Str("total", placed.TotalAmount.StringFixed(2)).
		Msg("service: order placed")
	s.notifyPlaced(ctx, placed)
	return placed, nil
}

// CreateCounterOrder records a sale made at the counter. It shares stock checks, decrements
// and payment with Checkout but has no persisted cart.
func (s *service) CreateCounterOrder(ctx context.Context, in CounterOrderInput) (*Order, error) {
	d, err := in.normalize()
	if err != nil {
		log.Warn().Err(err).Msg("service: rejected counter order input")
		return nil, err
	}

	var placed *Order
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		refs, qty := mergeCounterLines(in.Lines)
		variants, err := tx.LoadVariants(ctx, refs)
		if err != nil {
			return err
		}

		lines := make([]line, 0, len(refs))
		for _, ref := range refs {
			v, ok := variants[ref]
			if !ok {
				return fmt.Errorf("%w: %s", catalog.ErrNotFound, ref)
			}
			lines = append(lines, line{variant: v, qty: qty[ref]})
		}

		o, err := s.place(ctx, tx, d, lines)
		if err != nil {
			return err
		}
		placed = o
		return nil
	})
	if err != nil {
		s.logPlaceFailure(err, "counter", "staff")
		return nil, fmt.Errorf("service: counter order failed: %w", err)
	}

	log.Info().Stringer("order_id", placed.ID).Str("token", placed.TokenNumber).Msg("service: counter order created")
	return placed, nil
}

func mergeCounterLines(in []CounterLine) ([]catalog.Ref, map[catalog.Ref]int) {
	refs := make([]catalog.Ref, 0, len(in))
	qty := make(map[catalog.Ref]int, len(in))
	for _, l := range in {
		if _, seen := qty[l.Ref]; !seen {
			refs = append(refs, l.Ref)
		}
		qty[l.Ref] += l.Quantity
	}
	return refs, qty
}

// place runs the shared part of every order path inside tx.
func (s *service) place(ctx context.Context, tx Tx, d draft, lines []line) (*Order, error) {
	now := s.now()

	for _, l := range lines {
		if err := catalog.CheckSellable(l.variant, now); err != nil {
			return nil, err
		}
	}

	need, err := requirements(lines)
	if err != nil {
		return nil, err
	}

	o, err := s.buildOrder(d, lines, now)
	if err != nil {
		return nil, err
	}

	if err := s.insertWithToken(ctx, tx, o, now); err != nil {
		return nil, err
	}

	for _, r := range need {
		if err := tx.DecrementStock(ctx, r.productID, r.qty); err != nil {
			if errors.Is(err, ErrStockWouldGoNegative) {
				return nil, &InsufficientStockError{Item: r.item, Product: r.product, Available: r.available, Requested: r.qty}
			}
			return nil, err
		}
	}

	p, err := s.settle(ctx, o, d)
	if err != nil {
		return nil, err
	}
	if err := tx.InsertPayment(ctx, p); err != nil {
		return nil, err
	}
	o.Payment = p
	return o, nil
}

type requirement struct {
	productID uuid.UUID
	product   string
	item      string
	available int
	qty       int
}

// requirements sums per-product consumption over all lines, in line order, and fails on the
// first product whose stock cannot cover it. The result is sorted by product id so stock rows
// are always touched in the same order.
func requirements(lines []line) ([]requirement, error) {
	idx := make(map[uuid.UUID]int)
	var out []requirement

	for _, l := range lines {
		for _, c := range l.variant.Components() {
			i, ok := idx[c.Product.ID]
			if !ok {
				i = len(out)
				idx[c.Product.ID] = i
				out = append(out, requirement{
					productID: c.Product.ID,
					product:   c.Product.Name,
					available: c.Product.Stock,
				})
			}
			r := &out[i]
			r.qty += c.PerUnit * l.qty
			r.item = l.variant.DisplayName()
			if r.qty > r.available {
				return nil, &InsufficientStockError{
					Item:      l.variant.DisplayName(),
					Product:   r.product,
					Available: r.available,
					Requested: r.qty,
				}
			}
		}
		if len(l.variant.Components()) == 0 {
			return nil, &InsufficientStockError{Item: l.variant.DisplayName(), Product: l.variant.DisplayName(), Requested: l.qty}
		}
	}

	sort.Slice(out, func(a, b int) bool {
		return bytes.Compare(out[a].productID.Bytes(), out[b].productID.Bytes()) < 0
	})
	return out, nil
}

func (s *service) buildOrder(d draft, lines []line, now time.Time) (*Order, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate order ID: %w", err)
	}

	o := &Order{
		ID:              id,
		UserID:          d.userID,
		Phone:           d.phone,
		Type:            d.typ,
		Channel:         d.channel,
		DeliveryAddress: d.address,
		Status:          d.status,
		CreatedAt:       now,
		UpdatedAt:       now,
		OrderItems:      make([]OrderItem, 0, len(lines)),
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		itemID, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("service: failed to generate order item ID: %w", err)
		}
		item := OrderItem{
			ID:       itemID,
			OrderID:  id,
			Kind:     l.variant.Ref().Kind,
			Name:     l.variant.DisplayName(),
			Quantity: l.qty,
			Price:    l.variant.UnitPrice(),
		}
		ref := uuid.NullUUID{UUID: l.variant.Ref().ID, Valid: true}
		switch l.variant.(type) {
		case *catalog.Product:
			item.ProductID = ref
		case *catalog.Combo:
			item.ComboID = ref
		case *catalog.Offer:
			item.OfferID = ref
		}
		subtotal = subtotal.Add(item.LineTotal())
		o.OrderItems = append(o.OrderItems, item)
	}

	o.TotalAmount = s.pricing.FromSubtotal(subtotal, len(lines) > 0).Total
	return o, nil
}

// insertWithToken writes the order, drawing pickup tokens until one is free today.
func (s *service) insertWithToken(ctx context.Context, tx Tx, o *Order, now time.Time) error {
	if o.Type != TypePickup {
		return tx.InsertOrder(ctx, o)
	}

	day := businessDay(now, s.loc)
	o.TokenDate = day
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		token := s.tokens()
		if !IsValidToken(token) {
			continue
		}
		taken, err := tx.TokenInUse(ctx, day, token)
		if err != nil {
			return err
		}
		if taken {
			log.Debug().Str("token", token).Int("attempt", attempt).Msg("service: pickup token already used today, drawing again")
			continue
		}

		o.TokenNumber = token
		err = tx.InsertOrder(ctx, o)
		if errors.Is(err, ErrTokenConflict) {
			log.Debug().Str("token", token).Int("attempt", attempt).Msg("service: pickup token raced, drawing again")
			o.TokenNumber = ""
			continue
		}
		return err
	}
	return fmt.Errorf("%w after %d attempts", ErrTokensExhausted, maxTokenAttempts)
}

// settle creates the payment record, charging the gateway when money has to move now.
func (s *service) settle(ctx context.Context, o *Order, d draft) (*Payment, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate payment ID: %w", err)
	}
	p := &Payment{
		ID:        id,
		OrderID:   o.ID,
		Amount:    o.TotalAmount,
		Method:    d.method,
		Status:    PaymentCompleted,
		CreatedAt: o.CreatedAt,
	}

	switch {
	case d.channel == ChannelCounter:
		p.TransactionID = cashReference(o.ID)
	case d.method.SettlesLater():
		p.Status = PaymentPending
		p.TransactionID = cashReference(o.ID)
	case d.reference != "":
		p.TransactionID = d.reference
	default:
		charge, err := s.gateway.CreateCharge(ctx, o.TotalAmount, s.currency)
		if err != nil {
			if errors.Is(err, payment.ErrChargeFailed) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", payment.ErrChargeFailed, err)
		}
		p.TransactionID = charge.ID
	}
	return p, nil
}

func cashReference(orderID uuid.UUID) string {
	return "CASH-" + strings.TrimPrefix(OrderNumber(orderID), "ORD-")
}

func (s *service) logPlaceFailure(err error, path, who string) {
	var shortfall *InsufficientStockError
	switch {
	case errors.As(err, &shortfall):
		log.Warn().Str("path", path).Str("owner", who).Str("item", shortfall.Item).Str("product", shortfall.Product).
			Int("available", shortfall.Available).Int("requested", shortfall.Requested).Msg("service: insufficient stock, order rolled back")
	case errors.Is(err, ErrValidation), errors.Is(err, catalog.ErrUnavailable), errors.Is(err, catalog.ErrNotFound):
		log.Warn().Err(err).Str("path", path).Str("owner", who).Msg("service: order rejected")
	case errors.Is(err, payment.ErrChargeFailed):
		log.Warn().Err(err).Str("path", path).Str("owner", who).Msg("service: payment failed, order rolled back")
	default:
		log.Error().Err(err).Str("path", path).Str("owner", who).Msg("service: failed to place order")
	}
}
