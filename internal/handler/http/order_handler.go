package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/winex/internal/catalog"
	"github.com/vasiliy-maslov/winex/internal/order"
)

type CheckoutRequest struct {
	PhoneNumber     string `json:"phone_number" validate:"required,numeric,min=10,max=15"`
	PaymentMethod   string `json:"payment_method" validate:"required,oneof=upi card cash online"`
	OrderType       string `json:"order_type" validate:"required,oneof=delivery pickup"`
	DeliveryAddress string `json:"delivery_address" validate:"required_if=OrderType delivery,max=500"`
}

type KioskCheckoutRequest struct {
	PhoneNumber string `json:"phone_number" validate:"omitempty,numeric,min=10,max=15"`
	PaymentID   string `json:"payment_id" validate:"omitempty,max=128"`
}

type CheckoutResponse struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	TokenNumber string            `json:"token_number,omitempty"`
	Status      order.OrderStatus `json:"status"`
	TotalAmount string            `json:"total_amount"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed preparing ready completed cancelled"`
}

type UpdateDeliveryAddressRequest struct {
	DeliveryAddress string `json:"delivery_address" validate:"required,max=500"`
}

type CounterOrderItemRequest struct {
	Kind     string `json:"kind" validate:"required,oneof=product combo offer"`
	ID       string `json:"id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=100"`
}

type CounterOrderRequest struct {
	CustomerName    string                    `json:"customer_name" validate:"omitempty,max=100"`
	PhoneNumber     string                    `json:"phone_number" validate:"omitempty,numeric,min=10,max=15"`
	OrderType       string                    `json:"order_type" validate:"omitempty,oneof=delivery pickup"`
	DeliveryAddress string                    `json:"delivery_address" validate:"required_if=OrderType delivery,max=500"`
	PaymentMethod   string                    `json:"payment_method" validate:"omitempty,oneof=upi card cash"`
	Status          string                    `json:"status" validate:"omitempty,oneof=pending confirmed preparing ready completed"`
	Items           []CounterOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type OrderItemResponse struct {
	ID        uuid.UUID    `json:"id"`
	Kind      catalog.Kind `json:"kind"`
	Name      string       `json:"name"`
	Quantity  int          `json:"quantity"`
	Price     string       `json:"price"`
	LineTotal string       `json:"line_total"`
}

type PaymentResponse struct {
	Amount        string              `json:"amount"`
	Status        order.PaymentStatus `json:"status"`
	Method        order.PaymentMethod `json:"payment_method"`
	TransactionID string              `json:"transaction_id"`
}

type OrderResponse struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     string              `json:"order_number"`
	PhoneNumber     string              `json:"phone_number"`
	OrderType       order.OrderType     `json:"order_type"`
	Channel         order.Channel       `json:"channel"`
	DeliveryAddress string              `json:"delivery_address,omitempty"`
	TokenNumber     string              `json:"token_number,omitempty"`
	Status          order.OrderStatus   `json:"status"`
	TotalAmount     string              `json:"total_amount"`
	Items           []OrderItemResponse `json:"items"`
	Payment         *PaymentResponse    `json:"payment,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func newOrderResponse(o *order.Order) OrderResponse {
	resp := OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.Number(),
		PhoneNumber:     o.Phone,
		OrderType:       o.Type,
		Channel:         o.Channel,
		DeliveryAddress: o.DeliveryAddress,
		TokenNumber:     o.TokenNumber,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount.StringFixed(2),
		Items:           make([]OrderItemResponse, 0, len(o.OrderItems)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, item := range o.OrderItems {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:        item.ID,
			Kind:      item.Kind,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price.StringFixed(2),
			LineTotal: item.LineTotal().StringFixed(2),
		})
	}
	if o.Payment != nil {
		resp.Payment = &PaymentResponse{
			Amount:        o.Payment.Amount.StringFixed(2),
			Status:        o.Payment.Status,
			Method:        o.Payment.Method,
			TransactionID: o.Payment.TransactionID,
		}
	}
	return resp
}

type ReceiptLineResponse struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type ReceiptResponse struct {
	Order      OrderResponse         `json:"order"`
	Lines      []ReceiptLineResponse `json:"lines"`
	Subtotal   string                `json:"subtotal"`
	Tax        string                `json:"tax"`
	ServiceFee string                `json:"service_fee"`
	Total      string                `json:"total"`
}

func newReceiptResponse(rc *order.Receipt) ReceiptResponse {
	resp := ReceiptResponse{
		Order:      newOrderResponse(rc.Order),
		Lines:      make([]ReceiptLineResponse, 0, len(rc.Lines)),
		Subtotal:   rc.Subtotal.StringFixed(2),
		Tax:        rc.Tax.StringFixed(2),
		ServiceFee: rc.ServiceFee.StringFixed(2),
		Total:      rc.Total.StringFixed(2),
	}
	for _, l := range rc.Lines {
		resp.Lines = append(resp.Lines, ReceiptLineResponse{
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			LineTotal: l.LineTotal.StringFixed(2),
		})
	}
	return resp
}

type OrderHandler struct {
	orders   order.Service
	validate *validator.Validate
}

func NewOrderHandler(orders order.Service) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		validate: newValidator(),
	}
}

// RegisterRoutes mounts the customer-facing routes. Identify must run in front of them.
func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/checkout", h.handleCheckout)
	router.Post("/kiosk/checkout", h.handleKioskCheckout)
	router.Get("/orders/{id}/tracking", h.handleTracking)
	router.Get("/track/{token}", h.handleTrackByToken)
	router.Get("/me/orders", h.handleMyOrders)
}

// RegisterStaffRoutes mounts order management under an already authenticated staff router.
func (h *OrderHandler) RegisterStaffRoutes(router chi.Router) {
	router.Post("/orders/counter", h.handleCreateCounterOrder)
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Get("/orders/{id}/receipt", h.handleReceipt)
	router.Patch("/orders/{id}/status", h.handleUpdateStatus)
	router.Patch("/orders/{id}/delivery-address", h.handleUpdateDeliveryAddress)
}

func newCheckoutResponse(o *order.Order) CheckoutResponse {
	return CheckoutResponse{
		OrderID:     o.ID,
		OrderNumber: o.Number(),
		TokenNumber: o.TokenNumber,
		Status:      o.Status,
		TotalAmount: o.TotalAmount.StringFixed(2),
	}
}

func (h *OrderHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Missing session")
		return
	}

	var requestPayload CheckoutRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	placed, err := h.orders.Checkout(r.Context(), order.CheckoutInput{
		Owner:           id.WebOwner(),
		Channel:         order.ChannelWeb,
		Phone:           requestPayload.PhoneNumber,
		Type:            order.OrderType(requestPayload.OrderType),
		DeliveryAddress: requestPayload.DeliveryAddress,
		PaymentMethod:   order.PaymentMethod(requestPayload.PaymentMethod),
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to place order")
		return
	}

	respondWithJSON(w, http.StatusCreated, newCheckoutResponse(placed))
}

func (h *OrderHandler) handleKioskCheckout(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Missing session")
		return
	}

	var requestPayload KioskCheckoutRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	placed, err := h.orders.Checkout(r.Context(), order.CheckoutInput{
		Owner:            id.KioskOwner(),
		Channel:          order.ChannelKiosk,
		Phone:            requestPayload.PhoneNumber,
		PaymentReference: requestPayload.PaymentID,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to place kiosk order")
		return
	}

	respondWithJSON(w, http.StatusCreated, newCheckoutResponse(placed))
}

func (h *OrderHandler) handleTracking(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	timeline, err := h.orders.Timeline(r.Context(), orderID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load order tracking")
		return
	}
	respondWithJSON(w, http.StatusOK, timeline)
}

func (h *OrderHandler) handleTrackByToken(w http.ResponseWriter, r *http.Request) {
	timeline, err := h.orders.TrackByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		respondWithServiceError(w, err, "Failed to track order")
		return
	}
	respondWithJSON(w, http.StatusOK, timeline)
}

func (h *OrderHandler) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok || id.UserID == uuid.Nil {
		respondWithError(w, http.StatusUnauthorized, "Sign in to see your orders")
		return
	}

	orders, err := h.orders.GetOrdersByUserID(r.Context(), id.UserID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load orders")
		return
	}

	resp := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, newOrderResponse(&orders[i]))
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order")
		return
	}
	respondWithJSON(w, http.StatusOK, newOrderResponse(o))
}

func (h *OrderHandler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	receipt, err := h.orders.Receipt(r.Context(), orderID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to build receipt")
		return
	}
	respondWithJSON(w, http.StatusOK, newReceiptResponse(receipt))
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload UpdateStatusRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	updated, err := h.orders.UpdateStatus(r.Context(), orderID, order.OrderStatus(requestPayload.Status))
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order status")
		return
	}

	log.Info().Stringer("order_id", orderID).Str("status", requestPayload.Status).Msg("Order status changed by staff")
	respondWithJSON(w, http.StatusOK, newOrderResponse(updated))
}

func (h *OrderHandler) handleUpdateDeliveryAddress(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload UpdateDeliveryAddressRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	if err := h.orders.AnnotateDeliveryAddress(r.Context(), orderID, requestPayload.DeliveryAddress); err != nil {
		respondWithServiceError(w, err, "Failed to update delivery address")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) handleCreateCounterOrder(w http.ResponseWriter, r *http.Request) {
	var requestPayload CounterOrderRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	in := order.CounterOrderInput{
		CustomerName:    requestPayload.CustomerName,
		Phone:           requestPayload.PhoneNumber,
		Type:            order.OrderType(requestPayload.OrderType),
		DeliveryAddress: requestPayload.DeliveryAddress,
		PaymentMethod:   order.PaymentMethod(requestPayload.PaymentMethod),
		Status:          order.OrderStatus(requestPayload.Status),
		Lines:           make([]order.CounterLine, 0, len(requestPayload.Items)),
	}
	for _, item := range requestPayload.Items {
		in.Lines = append(in.Lines, order.CounterLine{
			Ref:      catalog.Ref{Kind: catalog.Kind(item.Kind), ID: uuid.FromStringOrNil(item.ID)},
			Quantity: item.Quantity,
		})
	}

	placed, err := h.orders.CreateCounterOrder(r.Context(), in)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create counter order")
		return
	}
	respondWithJSON(w, http.StatusCreated, newOrderResponse(placed))
}
