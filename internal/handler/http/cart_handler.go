package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/winex/internal/cart"
	"github.com/vasiliy-maslov/winex/internal/catalog"
)

type AddCartItemRequest struct {
	Kind string `json:"kind" validate:"required,oneof=product combo offer"`
	ID   string `json:"id" validate:"required,uuid"`
}

type CartItemResponse struct {
	ID          uuid.UUID    `json:"id"`
	Kind        catalog.Kind `json:"kind"`
	RefID       uuid.UUID    `json:"ref_id"`
	Name        string       `json:"name"`
	Quantity    int          `json:"quantity"`
	MaxQuantity int          `json:"max_quantity"`
	UnitPrice   string       `json:"unit_price"`
	LineTotal   string       `json:"line_total"`
	AddedAt     time.Time    `json:"added_at"`
}

type CartResponse struct {
	ID         uuid.UUID          `json:"id"`
	Items      []CartItemResponse `json:"items"`
	ItemCount  int                `json:"item_count"`
	Subtotal   string             `json:"subtotal"`
	Tax        string             `json:"tax"`
	ServiceFee string             `json:"service_fee"`
	Total      string             `json:"total"`
}

func newCartResponse(s *cart.Summary) CartResponse {
	resp := CartResponse{
		ID:         s.Cart.ID,
		Items:      make([]CartItemResponse, 0, len(s.Cart.Items)),
		ItemCount:  s.ItemCount,
		Subtotal:   s.Totals.Subtotal.StringFixed(2),
		Tax:        s.Totals.Tax.StringFixed(2),
		ServiceFee: s.Totals.ServiceFee.StringFixed(2),
		Total:      s.Totals.Total.StringFixed(2),
	}
	for _, item := range s.Cart.Items {
		ref := item.Variant.Ref()
		resp.Items = append(resp.Items, CartItemResponse{
			ID:          item.ID,
			Kind:        ref.Kind,
			RefID:       ref.ID,
			Name:        item.Name(),
			Quantity:    item.Quantity,
			MaxQuantity: catalog.MaxUnits(item.Variant),
			UnitPrice:   item.Variant.UnitPrice().StringFixed(2),
			LineTotal:   item.LineTotal().StringFixed(2),
			AddedAt:     item.CreatedAt,
		})
	}
	return resp
}

// ownerFunc picks the cart a route works on, web or kiosk.
type ownerFunc func(Identity) cart.Owner

type CartHandler struct {
	carts    cart.Service
	catalog  catalog.Service
	validate *validator.Validate
}

func NewCartHandler(carts cart.Service, catalogService catalog.Service) *CartHandler {
	return &CartHandler{
		carts:    carts,
		catalog:  catalogService,
		validate: newValidator(),
	}
}

// RegisterRoutes expects Identify to run in front of the router.
func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Get("/shop", h.handleShop)

	h.registerCart(router, "/cart", Identity.WebOwner)
	h.registerCart(router, "/kiosk/cart", Identity.KioskOwner)
}

func (h *CartHandler) registerCart(router chi.Router, prefix string, owner ownerFunc) {
	router.Get(prefix, h.handleView(owner))
	router.Post(prefix+"/items", h.handleAdd(owner))
	router.Post(prefix+"/items/{itemID}/increase", h.handleMutate(owner, h.carts.IncreaseItem))
	router.Post(prefix+"/items/{itemID}/decrease", h.handleMutate(owner, h.carts.DecreaseItem))
	router.Delete(prefix+"/items/{itemID}", h.handleMutate(owner, h.carts.RemoveItem))
}

func (h *CartHandler) handleShop(w http.ResponseWriter, r *http.Request) {
	shop, err := h.catalog.Shop(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to load shop")
		return
	}
	respondWithJSON(w, http.StatusOK, shop)
}

func (h *CartHandler) handleView(owner ownerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "Missing session")
			return
		}

		summary, err := h.carts.View(r.Context(), owner(id))
		if err != nil {
			respondWithServiceError(w, err, "Failed to load cart")
			return
		}
		respondWithJSON(w, http.StatusOK, newCartResponse(summary))
	}
}

func (h *CartHandler) handleAdd(owner ownerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "Missing session")
			return
		}

		var requestPayload AddCartItemRequest
		if !decodeAndValidate(w, r, h.validate, &requestPayload) {
			return
		}

		kind, err := catalog.ParseKind(requestPayload.Kind)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		ref := catalog.Ref{Kind: kind, ID: uuid.FromStringOrNil(requestPayload.ID)}

		summary, err := h.carts.AddItem(r.Context(), owner(id), ref)
		if err != nil {
			log.Info().Err(err).Stringer("ref", ref).Msg("Failed to add item to cart")
			respondWithServiceError(w, err, "Failed to add item to cart")
			return
		}
		respondWithJSON(w, http.StatusOK, newCartResponse(summary))
	}
}

type cartMutation func(ctx context.Context, owner cart.Owner, itemID uuid.UUID) (*cart.Summary, error)

func (h *CartHandler) handleMutate(owner ownerFunc, mutate cartMutation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "Missing session")
			return
		}
		itemID, ok := uuidParam(w, r, "itemID")
		if !ok {
			return
		}

		summary, err := mutate(r.Context(), owner(id), itemID)
		if err != nil {
			respondWithServiceError(w, err, "Failed to update cart")
			return
		}
		respondWithJSON(w, http.StatusOK, newCartResponse(summary))
	}
}
