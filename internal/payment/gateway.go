package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var ErrChargeFailed = errors.New("payment charge failed")

type Charge struct {
	ID       string          `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Gateway is the payment provider. A returned error means the charge did not go through.
type Gateway interface {
	CreateCharge(ctx context.Context, amount decimal.Decimal, currency string) (*Charge, error)
}

// HTTPGateway creates charges through a provider's REST "orders" endpoint with basic auth.
// Amounts travel in minor units.
type HTTPGateway struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

func NewHTTPGateway(baseURL, keyID, keySecret string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		client:    &http.Client{Timeout: timeout},
	}
}

type chargeRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type chargeResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (g *HTTPGateway) CreateCharge(ctx context.Context, amount decimal.Decimal, currency string) (*Charge, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", ErrChargeFailed, amount)
	}

	receipt, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("payment: failed to generate receipt id: %w", err)
	}

	body, err := json.Marshal(chargeRequest{
		Amount:   amount.Shift(2).Round(0).IntPart(),
		Currency: currency,
		Receipt:  "rcpt_" + receipt.String()[:8],
	})
	if err != nil {
		return nil, fmt.Errorf("payment: failed to encode charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("payment: failed to build charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("amount", amount.StringFixed(2)).Msg("payment: gateway request failed")
		return nil, fmt.Errorf("%w: %v", ErrChargeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Int("status_code", resp.StatusCode).Str("amount", amount.StringFixed(2)).Msg("payment: gateway rejected charge")
		return nil, fmt.Errorf("%w: gateway responded %d", ErrChargeFailed, resp.StatusCode)
	}

	var decoded chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: invalid gateway response: %v", ErrChargeFailed, err)
	}
	if decoded.ID == "" {
		return nil, fmt.Errorf("%w: gateway returned no charge id", ErrChargeFailed)
	}

	return &Charge{ID: decoded.ID, Amount: amount, Currency: currency}, nil
}

// OfflineGateway accepts every charge locally; used when no provider is configured.
type OfflineGateway struct{}

func (OfflineGateway) CreateCharge(_ context.Context, amount decimal.Decimal, currency string) (*Charge, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("payment: failed to generate charge id: %w", err)
	}
	return &Charge{
		ID:       "pay_" + strings.ReplaceAll(id.String(), "-", "")[:14],
		Amount:   amount,
		Currency: currency,
	}, nil
}
