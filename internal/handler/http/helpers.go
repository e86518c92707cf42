package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/winex/internal/cart"
	"github.com/vasiliy-maslov/winex/internal/catalog"
	"github.com/vasiliy-maslov/winex/internal/dashboard"
	"github.com/vasiliy-maslov/winex/internal/order"
	"github.com/vasiliy-maslov/winex/internal/payment"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

// StockErrorResponse tells the client which line ran short and how many units are left.
type StockErrorResponse struct {
	Error     string `json:"error"`
	Item      string `json:"item"`
	Product   string `json:"product,omitempty"`
	Available int    `json:"available"`
	Requested int    `json:"requested,omitempty"`
}

// respondWithError отправляет JSON ошибку
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

// respondWithJSON отправляет JSON ответ
func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrOutOfStock),
		errors.Is(err, order.ErrInsufficientStock),
		errors.Is(err, order.ErrInvalidStatusTransition):
		return http.StatusConflict
	case errors.Is(err, order.ErrValidation),
		errors.Is(err, dashboard.ErrInvalidFilter),
		errors.Is(err, catalog.ErrUnavailable),
		errors.Is(err, catalog.ErrInvalidKind),
		errors.Is(err, cart.ErrInvalidOwner):
		return http.StatusBadRequest
	case errors.Is(err, payment.ErrChargeFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, order.ErrTokensExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage drops the layer prefixes our services add while wrapping.
func publicMessage(err error) string {
	for err != nil {
		msg := err.Error()
		if !strings.HasPrefix(msg, "service:") && !strings.HasPrefix(msg, "repository:") {
			return msg
		}
		next := errors.Unwrap(err)
		if next == nil {
			return msg
		}
		err = next
	}
	return ""
}

// respondWithServiceError maps a domain error onto a response. Server-side failures are
// reported with the fallback message only.
func respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	var outOfStock *cart.OutOfStockError
	if errors.As(err, &outOfStock) {
		respondWithJSON(w, http.StatusConflict, StockErrorResponse{
			Error:     "Out of stock",
			Item:      outOfStock.Item,
			Available: outOfStock.Available,
		})
		return
	}

	var insufficient *order.InsufficientStockError
	if errors.As(err, &insufficient) {
		respondWithJSON(w, http.StatusConflict, StockErrorResponse{
			Error:     "Insufficient stock",
			Item:      insufficient.Item,
			Product:   insufficient.Product,
			Available: insufficient.Available,
			Requested: insufficient.Requested,
		})
		return
	}

	code := mapErrorToStatusCode(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg(fallback)
		respondWithError(w, code, fallback)
		return
	}
	respondWithError(w, code, publicMessage(err))
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			details[field] = "is required"
		case "required_if":
			details[field] = fmt.Sprintf("is required when %s", fe.Param())
		case "oneof":
			details[field] = fmt.Sprintf("must be one of: %s", fe.Param())
		case "min":
			details[field] = fmt.Sprintf("must be at least %s", fe.Param())
		case "max":
			details[field] = fmt.Sprintf("must be at most %s", fe.Param())
		case "len":
			details[field] = fmt.Sprintf("must be exactly %s characters long", fe.Param())
		case "numeric":
			details[field] = "must contain digits only"
		case "uuid":
			details[field] = "must be a valid UUID"
		default:
			details[field] = fmt.Sprintf("failed on the '%s' rule", fe.Tag())
		}
	}
	return details
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate fills dst from the request body and runs struct validation. It writes the
// error response itself and reports whether the handler may proceed.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		log.Warn().Err(err).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}

	if err := v.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.FromString(raw)
	if err != nil {
		log.Warn().Err(err).Str(name, raw).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s parameter", name))
		return uuid.Nil, false
	}
	return id, true
}
