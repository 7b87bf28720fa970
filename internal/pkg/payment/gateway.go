package payment

import "context"

// CreateIntentParams carries the gateway-side charge intent request. Amount is
// in the minor currency unit; Metadata travels to the provider and comes back
// on webhook events, which is how the recovery path re-learns ownership.
type CreateIntentParams struct {
	Amount   int64
	Currency string
	Metadata map[string]string
}

// Intent is the provider-side charge intent as returned on creation.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       string
}

// Gateway is the narrow client surface to the external payment provider.
// Implementations are constructed once at startup and injected; nothing in
// this package reaches for a process-global client.
type Gateway interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)
}
