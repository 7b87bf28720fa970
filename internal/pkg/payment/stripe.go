package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/PayFox/internal/pkg/env"
	"github.com/google/uuid"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

// StripeClient talks to the Stripe REST API. Only the payment-intent creation
// endpoint is used; everything else Stripe offers is out of scope here.
type StripeClient struct {
	SecretKey  string
	APIBaseURL string

	HTTPClient *http.Client
}

type stripeIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewStripeClientFromEnv builds the client from the environment. It is called
// exactly once during router setup; the resulting client is injected into the
// payment service.
func NewStripeClientFromEnv() *StripeClient {
	return &StripeClient{
		SecretKey:  strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateIntent creates a payment intent on the provider. Amount is already in
// minor units; Stripe expects the currency lowercased.
func (c *StripeClient) CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	if strings.TrimSpace(c.SecretKey) == "" {
		return nil, fmt.Errorf("%w: STRIPE_SECRET_KEY is not configured", ErrGateway)
	}
	if params.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if strings.TrimSpace(params.Currency) == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrValidation)
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.Amount, 10))
	form.Set("currency", strings.ToLower(strings.TrimSpace(params.Currency)))
	form.Set("automatic_payment_methods[enabled]", "true")
	for k, v := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	endpoint := strings.TrimRight(c.APIBaseURL, "/") + "/payment_intents"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	// Guards against duplicate intents when our own HTTP call is retried.
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var stripeErr stripeErrorResponse
		if jsonErr := json.Unmarshal(body, &stripeErr); jsonErr == nil && stripeErr.Error.Message != "" {
			return nil, fmt.Errorf("%w: status=%d type=%s message=%s", ErrGateway, resp.StatusCode, stripeErr.Error.Type, stripeErr.Error.Message)
		}
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrGateway, resp.StatusCode, string(body))
	}

	var out stripeIntentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if strings.TrimSpace(out.ID) == "" || strings.TrimSpace(out.ClientSecret) == "" {
		return nil, fmt.Errorf("%w: intent creation returned empty id/client_secret", ErrGateway)
	}

	return &Intent{
		ID:           out.ID,
		ClientSecret: out.ClientSecret,
		Amount:       out.Amount,
		Currency:     strings.ToUpper(out.Currency),
		Status:       out.Status,
	}, nil
}
