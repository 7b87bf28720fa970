package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripeClient_CreateIntent(t *testing.T) {
	var gotIdempotencyKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		gotIdempotencyKey = r.Header.Get("Idempotency-Key")

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "49900", r.PostForm.Get("amount"))
		assert.Equal(t, "inr", r.PostForm.Get("currency"))
		assert.Equal(t, "true", r.PostForm.Get("automatic_payment_methods[enabled]"))
		assert.Equal(t, "42", r.PostForm.Get("metadata[user_id]"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pi_123","client_secret":"pi_123_secret_abc","amount":49900,"currency":"inr","status":"requires_payment_method"}`))
	}))
	defer server.Close()

	client := &StripeClient{
		SecretKey:  "sk_test_123",
		APIBaseURL: server.URL,
		HTTPClient: server.Client(),
	}

	intent, err := client.CreateIntent(context.Background(), CreateIntentParams{
		Amount:   49900,
		Currency: "INR",
		Metadata: map[string]string{"user_id": "42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)
	assert.Equal(t, int64(49900), intent.Amount)
	assert.Equal(t, "INR", intent.Currency)
	assert.NotEmpty(t, gotIdempotencyKey)
}

func TestStripeClient_CreateIntent_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
	}))
	defer server.Close()

	client := &StripeClient{
		SecretKey:  "sk_test_123",
		APIBaseURL: server.URL,
		HTTPClient: server.Client(),
	}

	_, err := client.CreateIntent(context.Background(), CreateIntentParams{Amount: 100, Currency: "INR"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGateway))
	assert.Contains(t, err.Error(), "Your card was declined.")
}

func TestStripeClient_CreateIntent_Validation(t *testing.T) {
	client := &StripeClient{SecretKey: "sk_test_123", APIBaseURL: "http://unused", HTTPClient: http.DefaultClient}

	_, err := client.CreateIntent(context.Background(), CreateIntentParams{Amount: 0, Currency: "INR"})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = client.CreateIntent(context.Background(), CreateIntentParams{Amount: 100, Currency: ""})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestStripeClient_CreateIntent_MissingSecret(t *testing.T) {
	client := &StripeClient{SecretKey: "", APIBaseURL: "http://unused", HTTPClient: http.DefaultClient}

	_, err := client.CreateIntent(context.Background(), CreateIntentParams{Amount: 100, Currency: "INR"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGateway))
}
