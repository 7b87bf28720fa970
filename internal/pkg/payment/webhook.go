package payment

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Stripe event types the reconciler acts on.
const (
	stripeEventIntentSucceeded = "payment_intent.succeeded"
	stripeEventIntentFailed    = "payment_intent.payment_failed"
)

type stripeWebhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Amount   int64             `json:"amount"`
			Currency string            `json:"currency"`
			Status   string            `json:"status"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseStripeWebhookEvent decodes a raw Stripe event payload into the
// provider-agnostic IntentEvent. Event types outside the payment-intent
// lifecycle map to EventOther and are acknowledged without effect.
func ParseStripeWebhookEvent(raw []byte) (*IntentEvent, error) {
	var envelope stripeWebhookEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayload, err)
	}

	eventType := EventOther
	switch envelope.Type {
	case stripeEventIntentSucceeded:
		eventType = EventIntentSucceeded
	case stripeEventIntentFailed:
		eventType = EventIntentFailed
	}

	intentID := strings.TrimSpace(envelope.Data.Object.ID)
	if eventType != EventOther && intentID == "" {
		return nil, fmt.Errorf("%w: payment intent id missing", ErrPayload)
	}

	return &IntentEvent{
		ProviderEventID: strings.TrimSpace(envelope.ID),
		Type:            eventType,
		RawType:         envelope.Type,
		PaymentIntentID: intentID,
		Amount:          envelope.Data.Object.Amount,
		Currency:        strings.ToUpper(strings.TrimSpace(envelope.Data.Object.Currency)),
		UserID:          parseMetadataUserID(envelope.Data.Object.Metadata),
	}, nil
}

func parseMetadataUserID(metadata map[string]string) *uint {
	raw, ok := metadata["user_id"]
	if !ok {
		return nil
	}
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil || id == 0 {
		return nil
	}
	out := uint(id)
	return &out
}
